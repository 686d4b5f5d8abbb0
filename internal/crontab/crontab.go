// Package crontab parses and serializes 5-field crontab expressions.
//
// Validation here is purely syntactic: exactly five whitespace-separated
// fields. Field contents are checked later, when the scheduler compiles
// the schedule for recurrence computation.
package crontab

import (
	"fmt"
	"strings"
)

// Schedule is the structured form of a 5-field crontab expression.
type Schedule struct {
	Minute      string
	Hour        string
	DayOfMonth  string
	MonthOfYear string
	DayOfWeek   string
}

// FormatError reports a crontab expression with the wrong field count.
type FormatError struct {
	Text   string
	Fields int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("crontab: expected 5 fields, got %d in %q", e.Fields, e.Text)
}

// Parse splits text on whitespace into a Schedule. It fails with a
// *FormatError if the field count is not exactly 5; it never truncates
// or pads.
func Parse(text string) (Schedule, error) {
	fields := strings.Fields(text)
	if len(fields) != 5 {
		return Schedule{}, &FormatError{Text: text, Fields: len(fields)}
	}
	return Schedule{
		Minute:      fields[0],
		Hour:        fields[1],
		DayOfMonth:  fields[2],
		MonthOfYear: fields[3],
		DayOfWeek:   fields[4],
	}, nil
}

// Format renders the schedule back to its wire form with single-space
// separators. Format(Parse(x)) == x for any well-formed x that already
// uses single spaces.
func Format(s Schedule) string {
	return strings.Join([]string{s.Minute, s.Hour, s.DayOfMonth, s.MonthOfYear, s.DayOfWeek}, " ")
}
