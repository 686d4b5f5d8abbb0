package domain

import "errors"

// ErrNotFound is returned by repository lookups when the record does not
// exist. Fired handlers treat it as a normal outcome (the record was
// deleted after its task was scheduled); explicit manager calls propagate it.
var ErrNotFound = errors.New("record not found")
