package testutil

import (
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !clock.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", clock.Now(), want)
	}

	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Errorf("after Set, Now() = %v, want %v", clock.Now(), start)
	}
}

func TestSeededRand_Deterministic(t *testing.T) {
	a := SeededRand(42)
	b := SeededRand(42)
	for i := 0; i < 10; i++ {
		if x, y := a.Intn(100), b.Intn(100); x != y {
			t.Fatalf("same seed diverged at draw %d: %d != %d", i, x, y)
		}
	}
}

func TestMustParseUUID(t *testing.T) {
	id := MustParseUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	if id.String() != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Errorf("unexpected UUID: %s", id)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustParseUUID should panic on invalid input")
		}
	}()
	MustParseUUID("not-a-uuid")
}
