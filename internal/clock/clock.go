// Package clock supplies the current time to the batch passes so date
// logic can be tested against a frozen instant.
package clock

import "time"

// Clock is the time source used by all scheduling logic.
type Clock interface {
	Now() time.Time
	// Today is Now truncated to midnight UTC.
	Today() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Frozen always reports the same instant. Tests set it to a known date.
type Frozen struct {
	Instant time.Time
}

func (f Frozen) Now() time.Time { return f.Instant }

func (f Frozen) Today() time.Time {
	y, m, d := f.Instant.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
