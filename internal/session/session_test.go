package session

import (
	"testing"
	"time"
)

func TestNewBoundary_Parse(t *testing.T) {
	b, err := NewBoundary("03:00", "Asia/Kolkata")
	if err != nil {
		t.Fatalf("parse 03:00 failed: %v", err)
	}
	if b.Hour != 3 || b.Minute != 0 {
		t.Fatalf("expected 03:00, got %02d:%02d", b.Hour, b.Minute)
	}

	for _, bad := range []string{"", "3", "25:00", "03:61", "ab:cd"} {
		if _, err := NewBoundary(bad, "Asia/Kolkata"); err == nil {
			t.Errorf("expected error for reset time %q", bad)
		}
	}
}

func TestNewBoundary_BadZoneFallsBackToIST(t *testing.T) {
	b, err := NewBoundary("03:00", "No/Such_Zone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Loc != IST {
		t.Fatalf("expected IST fallback, got %v", b.Loc)
	}
}

func TestNextReset(t *testing.T) {
	b := Boundary{Hour: 3, Minute: 0, Loc: IST}

	// Before today's boundary → today's boundary.
	at := time.Date(2026, time.March, 10, 1, 30, 0, 0, IST)
	got := b.NextReset(at)
	want := time.Date(2026, time.March, 10, 3, 0, 0, 0, IST)
	if !got.Equal(want) {
		t.Fatalf("before boundary: got %v, want %v", got, want)
	}

	// After today's boundary → tomorrow's.
	at = time.Date(2026, time.March, 10, 9, 15, 0, 0, IST)
	got = b.NextReset(at)
	want = time.Date(2026, time.March, 11, 3, 0, 0, 0, IST)
	if !got.Equal(want) {
		t.Fatalf("after boundary: got %v, want %v", got, want)
	}

	// Exactly at the boundary → strictly after, so tomorrow's.
	at = time.Date(2026, time.March, 10, 3, 0, 0, 0, IST)
	got = b.NextReset(at)
	if !got.Equal(want) {
		t.Fatalf("at boundary: got %v, want %v", got, want)
	}
}
