package recurrence

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates the recurrence pattern variants.
type Type string

const (
	// None is a one-off: a single occurrence at the chore's start date.
	None Type = "none"
	// Simple repeats on a fixed interval (every N days/weeks/months).
	Simple Type = "simple"
	// Complex repeats on calendar constraints (weekdays, days of month,
	// weeks of month) combined with AND semantics.
	Complex Type = "complex"
)

// Interval is the unit for Simple patterns.
type Interval string

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

// Pattern is a declarative recurrence schedule. It is parsed and validated
// once at the boundary; the evaluator trusts a validated Pattern.
//
// Weekdays are encoded 0=Monday through 6=Sunday, matching the stored form.
// A constraint field that is nil is absent; a non-nil empty list is present
// but can never match any date.
type Pattern struct {
	Type         Type     `json:"type"`
	Interval     Interval `json:"interval,omitempty"`
	EveryN       int      `json:"every_n,omitempty"`
	DaysOfWeek   []int    `json:"days_of_week,omitempty"`
	DaysOfMonth  []int    `json:"days_of_month,omitempty"`
	WeeksOfMonth []int    `json:"weeks_of_month,omitempty"`
}

// Parse decodes a stored pattern. The empty string is a None pattern.
func Parse(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{Type: None}, nil
	}

	var p Pattern
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Pattern{}, fmt.Errorf("parse pattern: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// String serializes the pattern back to its stored form.
func (p Pattern) String() string {
	if p.Type == None || p.Type == "" {
		return ""
	}
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Validate checks structural constraints of the pattern.
func (p Pattern) Validate() error {
	switch p.Type {
	case None:
		return nil

	case Simple:
		switch p.Interval {
		case Daily, Weekly, Monthly:
		default:
			return fmt.Errorf("invalid interval: %q", p.Interval)
		}
		if p.EveryN < 1 {
			return fmt.Errorf("every_n must be positive, got %d", p.EveryN)
		}
		return nil

	case Complex:
		if p.DaysOfWeek == nil && p.DaysOfMonth == nil && p.WeeksOfMonth == nil {
			return fmt.Errorf("complex pattern requires at least one constraint")
		}
		for _, d := range p.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("invalid day of week: %d", d)
			}
		}
		for _, d := range p.DaysOfMonth {
			if d < 1 || d > 31 {
				return fmt.Errorf("invalid day of month: %d", d)
			}
		}
		for _, w := range p.WeeksOfMonth {
			if w < 1 || w > 5 {
				return fmt.Errorf("invalid week of month: %d", w)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown pattern type: %q", p.Type)
	}
}

// Recurring reports whether the pattern produces more than one occurrence.
func (p Pattern) Recurring() bool {
	return p.Type == Simple || p.Type == Complex
}

// mondayIndex converts a time.Weekday to the stored 0=Monday encoding.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
