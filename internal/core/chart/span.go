package chart

import (
	"fmt"
	"time"
)

// Span is the bucket granularity of a chart series.
type Span string

const (
	SpanHour Span = "hour"
	SpanDay  Span = "day"
)

// Spans lists every supported span. Commits write one bucket per span.
func Spans() []Span {
	return []Span{SpanHour, SpanDay}
}

// ParseSpan validates a span string from an external caller.
func ParseSpan(s string) (Span, error) {
	switch Span(s) {
	case SpanHour:
		return SpanHour, nil
	case SpanDay:
		return SpanDay, nil
	default:
		return "", fmt.Errorf("invalid span %q (must be hour or day)", s)
	}
}

// Duration returns the length of one bucket at this span.
func (s Span) Duration() time.Duration {
	if s == SpanDay {
		return 24 * time.Hour
	}
	return time.Hour
}

// Truncate maps a wall-clock instant to the start of its bucket, in UTC.
// A timestamp exactly on a boundary belongs to the bucket it starts.
// Example: Truncate(10:35:42, hour) → 10:00:00 UTC.
func (s Span) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if s == SpanDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Hour)
}
