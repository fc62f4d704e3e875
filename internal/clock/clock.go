// Package clock provides an injectable time source so workflow code and
// tests agree on what "today" means. Due-date comparisons happen in the
// household's local timezone.
package clock

import "time"

type Clock interface {
	// Now is the current instant.
	Now() time.Time
	// Today is the current civil date at midnight in the clock's location.
	Today() time.Time
}

// Real is a Clock backed by the system time in a fixed location.
type Real struct {
	loc *time.Location
}

func NewReal(loc *time.Location) Real {
	if loc == nil {
		loc = time.Local
	}
	return Real{loc: loc}
}

func (c Real) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c Real) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

// Fixed is a Clock pinned to a single instant, for tests.
type Fixed struct {
	T time.Time
}

func (c Fixed) Now() time.Time {
	return c.T
}

func (c Fixed) Today() time.Time {
	return time.Date(c.T.Year(), c.T.Month(), c.T.Day(), 0, 0, 0, 0, c.T.Location())
}
