// Package session computes the daily cache-validity boundary: the wall-clock
// instant at which a loaded master contract goes stale and must be reloaded
// from the broker.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30), used when the
// configured IANA zone cannot be loaded.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Boundary is a daily wall-clock reset time in a fixed timezone. Brokers
// regenerate the master contract early each morning, so the conventional
// boundary is 03:00 IST.
type Boundary struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// NewBoundary parses a "HH:MM" reset time and an IANA zone name. Falls back
// to IST if the zone cannot be loaded.
func NewBoundary(resetTime, zone string) (Boundary, error) {
	parts := strings.SplitN(resetTime, ":", 2)
	if len(parts) != 2 {
		return Boundary{}, fmt.Errorf("session: invalid reset time %q", resetTime)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Boundary{}, fmt.Errorf("session: invalid reset hour %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Boundary{}, fmt.Errorf("session: invalid reset minute %q", parts[1])
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = IST
	}
	return Boundary{Hour: hour, Minute: minute, Loc: loc}, nil
}

// NextReset returns the next occurrence of the boundary strictly after t:
// today's boundary if t is still before it, otherwise tomorrow's.
func (b Boundary) NextReset(t time.Time) time.Time {
	local := t.In(b.Loc)
	reset := time.Date(local.Year(), local.Month(), local.Day(), b.Hour, b.Minute, 0, 0, b.Loc)
	if reset.After(t) {
		return reset
	}
	return reset.AddDate(0, 0, 1)
}
