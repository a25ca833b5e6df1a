// Package clock provides the engine's time source.
//
// Everything that needs the current time takes a Clock so tests can use a
// Mock. The "minutes since local midnight" integer is the value bound to the
// `time` variable in predicates and the basis for market open/close timing.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock returns the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time { return time.Now() }

// Minutes returns the minutes elapsed since local midnight for t.
func Minutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseHHMM parses a "HH:MM" string (1-2 digit hour, 2 digit minute) into
// minutes since midnight. Hours above 23 or minutes above 59 are rejected.
func ParseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return h*60 + m, nil
}

// NextOccurrence returns the next instant strictly after now at which the
// local wall clock reads hhmm. The comparison is on the full instant, so
// sessions that straddle midnight resolve to the correct day.
func NextOccurrence(now time.Time, hhmm string) (time.Time, error) {
	mins, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), mins/60, mins%60, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

// Mock is a settable clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a mock clock frozen at t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the mock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the mock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
