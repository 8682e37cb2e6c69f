// File: internal/stats/boundary.go
// ============================================
package stats

import "time"

const dateLayout = "2006-01-02"

// Boundary fires once per calendar day at a fixed wall-clock time in a
// fixed-offset zone.
type Boundary struct {
	hour      int
	minute    int
	loc       *time.Location
	lastFired string
}

// NewBoundary starting after today's boundary counts today as already fired,
// so a restart late in the day does not send an empty report.
func NewBoundary(hour, minute int, loc *time.Location, now time.Time) *Boundary {
	if loc == nil {
		loc = time.UTC
	}
	b := &Boundary{hour: hour, minute: minute, loc: loc}
	if b.passed(now) {
		b.lastFired = now.In(loc).Format(dateLayout)
	}
	return b
}

func (b *Boundary) passed(now time.Time) bool {
	local := now.In(b.loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), b.hour, b.minute, 0, 0, b.loc)
	return !local.Before(at)
}

// Due reports whether the boundary has been reached today and not yet fired
func (b *Boundary) Due(now time.Time) bool {
	return b.passed(now) && now.In(b.loc).Format(dateLayout) != b.lastFired
}

func (b *Boundary) MarkFired(now time.Time) {
	b.lastFired = now.In(b.loc).Format(dateLayout)
}

// Date is the local calendar day of now, used to label reports
func (b *Boundary) Date(now time.Time) time.Time {
	local := now.In(b.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.loc)
}
