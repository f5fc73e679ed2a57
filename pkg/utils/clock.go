package utils

import "time"

const DateLayout = "2006-01-02"

// Clock returns the current business date. Services take one so tests can pin "today".
type Clock interface {
	Today() string
}

type zoneClock struct {
	loc *time.Location
}

// NewZoneClock returns a Clock reporting dates in loc.
func NewZoneClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return zoneClock{loc: loc}
}

func (z zoneClock) Today() string {
	return time.Now().In(z.loc).Format(DateLayout)
}

// FixedClock always reports the same date.
type FixedClock string

func (f FixedClock) Today() string { return string(f) }
