package recurrence

import "time"

// maxScanDays bounds the forward scan for combined complex constraints.
// Guarantees termination when constraints can never be satisfied
// (e.g. day 31 in week 1).
const maxScanDays = 366

// maxRangeIterations is a runaway guard for range expansion.
const maxRangeIterations = 1000

// DateOnly truncates t to midnight in its location. All evaluator inputs
// and outputs are date-resolution values.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDueDate returns the first occurrence of the pattern strictly after
// the given date. The second return is false when the pattern produces no
// further occurrence (None patterns, or complex constraints with no match
// within the scan bound).
func NextDueDate(p Pattern, after time.Time) (time.Time, bool) {
	after = DateOnly(after)

	switch p.Type {
	case Simple:
		return nextSimple(p, after), true
	case Complex:
		return nextComplex(p, after)
	default:
		return time.Time{}, false
	}
}

func nextSimple(p Pattern, after time.Time) time.Time {
	switch p.Interval {
	case Daily:
		return after.AddDate(0, 0, p.EveryN)
	case Weekly:
		return after.AddDate(0, 0, 7*p.EveryN)
	case Monthly:
		return addMonthsClamped(after, p.EveryN)
	}
	return after
}

// addMonthsClamped adds n calendar months, clamping to the last valid day
// of the target month when the original day does not exist there
// (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func nextComplex(p Pattern, after time.Time) (time.Time, bool) {
	onlyWeekdays := p.DaysOfWeek != nil && p.DaysOfMonth == nil && p.WeeksOfMonth == nil
	onlyMonthDays := p.DaysOfMonth != nil && p.DaysOfWeek == nil && p.WeeksOfMonth == nil

	switch {
	case onlyWeekdays:
		// The soonest later date whose weekday matches is at most 7 days out.
		for i := 1; i <= 7; i++ {
			cand := after.AddDate(0, 0, i)
			if containsInt(p.DaysOfWeek, mondayIndex(cand.Weekday())) {
				return cand, true
			}
		}
		return time.Time{}, false

	case onlyMonthDays:
		// Search the current month then the next. Invalid days (Feb 30)
		// are skipped implicitly because those dates never come up.
		limit := time.Date(after.Year(), after.Month()+2, 1, 0, 0, 0, 0, after.Location())
		for cand := after.AddDate(0, 0, 1); cand.Before(limit); cand = cand.AddDate(0, 0, 1) {
			if containsInt(p.DaysOfMonth, cand.Day()) {
				return cand, true
			}
		}
		return time.Time{}, false

	default:
		// Combined constraints: linear scan with AND semantics.
		for i := 1; i <= maxScanDays; i++ {
			cand := after.AddDate(0, 0, i)
			if matchesAll(p, cand) {
				return cand, true
			}
		}
		return time.Time{}, false
	}
}

func matchesAll(p Pattern, t time.Time) bool {
	if p.DaysOfWeek != nil && !containsInt(p.DaysOfWeek, mondayIndex(t.Weekday())) {
		return false
	}
	if p.DaysOfMonth != nil && !containsInt(p.DaysOfMonth, t.Day()) {
		return false
	}
	if p.WeeksOfMonth != nil && !containsInt(p.WeeksOfMonth, weekOfMonth(t)) {
		return false
	}
	return true
}

// weekOfMonth numbers the 1st-7th as week 1, the 8th-14th as week 2, etc.
func weekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// maxAnchorSteps bounds the chain walk for anchored monthly patterns.
// 1200 steps covers a century of monthly occurrences.
const maxAnchorSteps = 1200

// NextOnOrAfter returns the pattern's first occurrence on or after from.
// Simple patterns are anchored at the chore's start date: occurrences fall
// at start + k*interval, so the result never drifts with the day the
// evaluation happens to run. Complex patterns are calendar predicates and
// need no anchor.
func NextOnOrAfter(p Pattern, choreStart, from time.Time) (time.Time, bool) {
	choreStart = DateOnly(choreStart)
	from = DateOnly(from)
	if from.Before(choreStart) {
		from = choreStart
	}

	switch p.Type {
	case Simple:
		switch p.Interval {
		case Daily, Weekly:
			step := p.EveryN
			if p.Interval == Weekly {
				step *= 7
			}
			days := int(from.Sub(choreStart) / (24 * time.Hour))
			k := (days + step - 1) / step
			return choreStart.AddDate(0, 0, k*step), true
		case Monthly:
			// Each occurrence clamps from the original start day, so a
			// chore started on the 31st returns to the 31st after a short
			// month rather than staying clamped.
			for k := 0; k < maxAnchorSteps; k++ {
				due := addMonthsClamped(choreStart, k*p.EveryN)
				if !due.Before(from) {
					return due, true
				}
			}
			return time.Time{}, false
		}
		return time.Time{}, false

	case Complex:
		return nextComplex(p, from.AddDate(0, 0, -1))

	default:
		return time.Time{}, false
	}
}

// DueDatesInRange expands the pattern over [start, end], clipped to the
// chore's own start and optional end date. It is stateless and restartable:
// repeated calls with different ranges are independent.
func DueDatesInRange(p Pattern, start, end time.Time, choreStart time.Time, choreEnd *time.Time) []time.Time {
	start = DateOnly(start)
	end = DateOnly(end)
	choreStart = DateOnly(choreStart)

	if choreEnd != nil {
		ce := DateOnly(*choreEnd)
		if ce.Before(end) {
			end = ce
		}
	}

	if p.Type == None {
		if !choreStart.Before(start) && !choreStart.After(end) {
			return []time.Time{choreStart}
		}
		return nil
	}

	// Seed one day before the later of the range start and the chore start
	// so that the first candidate can land exactly on either.
	seed := start.AddDate(0, 0, -1)
	if cs := choreStart.AddDate(0, 0, -1); cs.After(seed) {
		seed = cs
	}

	var dates []time.Time
	for i := 0; i < maxRangeIterations; i++ {
		next, ok := NextDueDate(p, seed)
		if !ok || next.After(end) {
			break
		}
		dates = append(dates, next)
		seed = next
	}
	return dates
}
