package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSpan(t *testing.T) {
	span, err := ParseSpan("hour")
	require.NoError(t, err)
	require.Equal(t, SpanHour, span)

	span, err = ParseSpan("day")
	require.NoError(t, err)
	require.Equal(t, SpanDay, span)

	_, err = ParseSpan("week")
	require.Error(t, err)

	_, err = ParseSpan("")
	require.Error(t, err)
}

func TestSpanTruncateHour(t *testing.T) {
	in := time.Date(2026, 5, 4, 10, 35, 42, 123, time.UTC)
	require.Equal(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC), SpanHour.Truncate(in))

	// A boundary instant starts its own bucket.
	boundary := time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)
	require.Equal(t, boundary, SpanHour.Truncate(boundary))
}

func TestSpanTruncateDay(t *testing.T) {
	in := time.Date(2026, 5, 4, 23, 59, 59, 0, time.UTC)
	require.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), SpanDay.Truncate(in))
}

func TestSpanTruncateNormalizesZone(t *testing.T) {
	zone := time.FixedZone("JST", 9*3600)
	in := time.Date(2026, 5, 5, 3, 15, 0, 0, zone) // 2026-05-04T18:15Z

	require.Equal(t, time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC), SpanHour.Truncate(in))
	require.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), SpanDay.Truncate(in))
}

func TestSpanDuration(t *testing.T) {
	require.Equal(t, time.Hour, SpanHour.Duration())
	require.Equal(t, 24*time.Hour, SpanDay.Duration())
}
