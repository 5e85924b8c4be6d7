package fleet

import "time"

// =============================================================================
// DATE - Day-granular civil date (all fleet accounting is day-based)
// =============================================================================

// Date is a civil date pinned to UTC midnight. Expense effectivity, shift
// ownership, lease plans and attribute validity are all keyed by whole days;
// only DriverShift logon/logoff carry clock times, and those never enter
// range arithmetic.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(at time.Time) Date {
	u := at.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) IsZero() bool                  { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return Date{t: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// DaysInMonth returns the number of calendar days in the month containing d.
func DaysInMonth(d Date) int { return EndOfMonth(d.Year(), d.Month()).Day() }

// DaysBetweenInclusive counts the days in [from, to], both ends included.
// Returns 0 when to precedes from.
func DaysBetweenInclusive(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	return int(to.t.Sub(from.t).Hours()/24) + 1
}

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// DATE RANGE - Inclusive [From, To] interval
// =============================================================================

type DateRange struct {
	From Date
	To   Date
}

func NewDateRange(from, to Date) DateRange { return DateRange{From: from, To: to} }

// IsValid reports whether the range is non-empty (To not before From).
func (r DateRange) IsValid() bool { return !r.To.Before(r.From) }

func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.From) && d.BeforeOrEqual(r.To)
}

// Days returns the inclusive day count, 0 for an invalid range.
func (r DateRange) Days() int { return DaysBetweenInclusive(r.From, r.To) }

// Intersect returns the overlap of two ranges. ok is false when they are
// disjoint; a zero-day overlap is impossible since ranges are inclusive.
func (r DateRange) Intersect(other DateRange) (DateRange, bool) {
	out := DateRange{From: MaxDate(r.From, other.From), To: MinDate(r.To, other.To)}
	if !out.IsValid() {
		return DateRange{}, false
	}
	return out, true
}

func (r DateRange) String() string { return "[" + r.From.String() + ", " + r.To.String() + "]" }

// Months yields the first day of each calendar month the range touches.
// Used by the monthly proration walk.
func (r DateRange) Months() []Date {
	if !r.IsValid() {
		return nil
	}
	var months []Date
	current := StartOfMonth(r.From.Year(), r.From.Month())
	last := StartOfMonth(r.To.Year(), r.To.Month())
	for current.BeforeOrEqual(last) {
		months = append(months, current)
		current = current.AddMonths(1)
	}
	return months
}
