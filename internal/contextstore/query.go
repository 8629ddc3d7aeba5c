package contextstore

import (
	"fmt"
	"strings"
	"time"
)

// DateRange restricts results to entries created within a window ending now.
type DateRange string

const (
	RangeAll   DateRange = "all"
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
)

// TypeAll disables type filtering.
const TypeAll Type = "all"

// window returns how far back the range reaches; zero means unbounded.
func (r DateRange) window() time.Duration {
	switch r {
	case RangeToday:
		return 24 * time.Hour
	case RangeWeek:
		return 7 * 24 * time.Hour
	case RangeMonth:
		return 30 * 24 * time.Hour
	}
	return 0
}

// ParseDateRange accepts the empty string as RangeAll.
func ParseDateRange(s string) (DateRange, error) {
	switch r := DateRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "", RangeAll:
		return RangeAll, nil
	case RangeToday, RangeWeek, RangeMonth:
		return r, nil
	}
	return "", &ValidationError{Field: "date_range", Reason: fmt.Sprintf("must be one of today, week, month, all; got %q", s)}
}

// Filter selects entries. Zero values disable each criterion; Limit <= 0
// means no limit.
type Filter struct {
	Query string
	Type  Type
	Range DateRange
	Limit int
}

// Match reports whether c satisfies f at time now. A non-empty query matches
// when it is a case-insensitive substring of the content or the type.
func Match(c Context, f Filter, now time.Time) bool {
	if f.Type != "" && f.Type != TypeAll && c.Type != f.Type {
		return false
	}
	if w := f.Range.window(); w > 0 && c.Timestamp.Before(now.Add(-w)) {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(c.Content), q) ||
		strings.Contains(strings.ToLower(string(c.Type)), q)
}

// Apply returns copies of the matching entries in their original order,
// stopping at f.Limit.
func Apply(contexts []Context, f Filter, now time.Time) []Context {
	out := []Context{}
	for _, c := range contexts {
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		if Match(c, f, now) {
			out = append(out, c.clone())
		}
	}
	return out
}
