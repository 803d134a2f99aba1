package chart

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no bucket exists for an identity.
var ErrNotFound = errors.New("chart bucket not found")

// Row is one stored bucket. Identity is (ChartName, Span, GroupKey,
// BucketStart); ungrouped charts use GroupKey == "". Payload is the
// chart-specific field document; readers must treat absent fields as zero.
type Row struct {
	ChartName   string
	Span        Span
	GroupKey    string
	BucketStart time.Time
	Grouped     bool
	Payload     json.RawMessage
	UpdatedAt   time.Time
}

// Store is the only shared mutable resource the engine depends on.
//
// Implementations must provide two concurrency primitives: an insert that
// resolves identity conflicts to a single winning row (InsertIfAbsent), and
// an atomic read-modify-write of one bucket payload (Apply). Everything else
// is plain keyed reads.
type Store interface {
	// Get fetches one bucket by full identity. Returns ErrNotFound if absent.
	Get(ctx context.Context, name string, span Span, group string, bucketStart time.Time) (*Row, error)

	// Latest fetches the newest bucket for (name, span, group) regardless of
	// period. Returns ErrNotFound if the key has no history at all.
	Latest(ctx context.Context, name string, span Span, group string) (*Row, error)

	// InsertIfAbsent stores the row unless its identity already exists.
	// Reports whether this call created the row. Concurrent callers racing
	// on the same identity converge to exactly one stored row.
	InsertIfAbsent(ctx context.Context, row Row) (bool, error)

	// Apply runs merge against the current payload of one bucket and stores
	// the result, serialized against concurrent Apply calls on the same
	// identity. merge must be pure (no I/O). Returns ErrNotFound if the
	// bucket does not exist; the lock is released on every path.
	Apply(ctx context.Context, name string, span Span, group string, bucketStart time.Time,
		merge func(payload json.RawMessage) (json.RawMessage, error)) error

	// Range fetches up to limit buckets with BucketStart <= until,
	// newest-first. Never scans beyond limit rows.
	Range(ctx context.Context, name string, span Span, group string, until time.Time, limit int) ([]Row, error)

	// Groups lists the group keys that have a bucket at exactly bucketStart.
	// The ungrouped key "" is never included.
	Groups(ctx context.Context, name string, span Span, bucketStart time.Time) ([]string, error)
}
