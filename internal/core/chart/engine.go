package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Payload constrains a chart's typed field document. Implementations are
// plain structs of int64 counters (flat or one level of nesting); the zero
// value is the all-zero payload.
type Payload[P any] interface {
	// Add merges a signed delta into the receiver: cumulative fields add the
	// delta, per-period fields add, nested diff fields add per sub-key.
	Add(delta P) P

	// CarryForward copies cumulative fields into a fresh payload with every
	// per-period field zeroed. Used for rollover and gap-fill synthesis.
	CarryForward() P
}

// Definition is the chart-specific half of an engine.
type Definition[P Payload[P]] interface {
	// Template produces the seed payload for a brand-new bucket. When init
	// is true no bucket has ever existed for this key and cumulative fields
	// must come from the authoritative source of truth (a live count); this
	// is the only place drift between increments and ground truth is
	// corrected. When init is false, latest holds the previous period's
	// payload and cumulative fields carry forward unchanged.
	Template(ctx context.Context, init bool, latest *P, group string) (P, error)
}

// Options names a chart and declares whether its buckets are partitioned by
// a group key.
type Options struct {
	Name    string
	Grouped bool

	// Now overrides the engine clock. Nil means time.Now; tests inject a
	// fixed clock to pin bucket attribution.
	Now func() time.Time
}

// Engine owns the bucket lifecycle for one chart: seeding, concurrent delta
// application, rollover and gap-filled reads. It is resolution- and
// schema-agnostic; the Definition supplies the schema-specific parts.
type Engine[P Payload[P]] struct {
	name    string
	grouped bool
	store   Store
	def     Definition[P]
	seeds   singleflight.Group
	nowFn   func() time.Time
}

// NewEngine builds an engine over the given store. The store must be ready
// before any chart is constructed.
func NewEngine[P Payload[P]](opts Options, store Store, def Definition[P]) *Engine[P] {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine[P]{
		name:    opts.Name,
		grouped: opts.Grouped,
		store:   store,
		def:     def,
		nowFn:   func() time.Time { return nowFn().UTC() },
	}
}

func (e *Engine[P]) Name() string { return e.name }

func (e *Engine[P]) Grouped() bool { return e.grouped }

// Commit applies one delta to the current bucket of every span, seeding the
// bucket first when a new period has begun. Deltas to the same bucket are
// serialized by the store; deltas to different identities run in parallel.
func (e *Engine[P]) Commit(ctx context.Context, group string, delta P) error {
	for _, span := range Spans() {
		if err := e.commitSpan(ctx, span, group, delta); err != nil {
			return fmt.Errorf("chart %s: commit %s bucket: %w", e.name, span, err)
		}
	}
	return nil
}

func (e *Engine[P]) commitSpan(ctx context.Context, span Span, group string, delta P) error {
	// The target bucket is fixed by truncating the clock once, here. A delta
	// arriving exactly on a boundary lands in the bucket starting at that
	// instant, never the prior one.
	bucketStart := span.Truncate(e.nowFn())

	if _, err := e.ensure(ctx, span, group, bucketStart); err != nil {
		return err
	}

	return e.store.Apply(ctx, e.name, span, group, bucketStart, func(raw json.RawMessage) (json.RawMessage, error) {
		p, err := decode[P](raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p.Add(delta))
	})
}

// ensure loads the bucket at bucketStart, seeding it if absent. Concurrent
// in-process callers racing on the same identity share one seed attempt via
// singleflight; cross-process races resolve through InsertIfAbsent, with
// losers discarding their seed and adopting the stored row.
func (e *Engine[P]) ensure(ctx context.Context, span Span, group string, bucketStart time.Time) (P, error) {
	var zero P

	row, err := e.store.Get(ctx, e.name, span, group, bucketStart)
	if err == nil {
		return decode[P](row.Payload)
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, fmt.Errorf("load bucket: %w", err)
	}

	key := strings.Join([]string{e.name, string(span), group, bucketStart.Format(time.RFC3339)}, "\x00")
	v, err, _ := e.seeds.Do(key, func() (interface{}, error) {
		return e.seed(ctx, span, group, bucketStart)
	})
	if err != nil {
		return zero, err
	}
	return v.(P), nil
}

// seed computes and stores the initial payload for a new bucket. The
// source-of-truth query inside Template runs before any store-level lock is
// taken, so a slow authoritative count cannot block concurrent deltas on
// other buckets.
func (e *Engine[P]) seed(ctx context.Context, span Span, group string, bucketStart time.Time) (P, error) {
	var zero P
	var latest *P
	init := false

	prev, err := e.store.Latest(ctx, e.name, span, group)
	switch {
	case errors.Is(err, ErrNotFound):
		// First bucket ever for this key.
		init = true
	case err != nil:
		return zero, fmt.Errorf("load latest bucket: %w", err)
	case prev.BucketStart.Equal(bucketStart):
		// Another writer seeded this period between our Get and here.
		return decode[P](prev.Payload)
	default:
		p, decErr := decode[P](prev.Payload)
		if decErr != nil {
			return zero, decErr
		}
		latest = &p
	}

	seeded, err := e.def.Template(ctx, init, latest, group)
	if err != nil {
		// Never default a failed authoritative count to zero; that would
		// silently corrupt cumulative totals.
		return zero, fmt.Errorf("seed template (init=%t): %w", init, err)
	}

	raw, err := json.Marshal(seeded)
	if err != nil {
		return zero, fmt.Errorf("encode seed payload: %w", err)
	}

	inserted, err := e.store.InsertIfAbsent(ctx, Row{
		ChartName:   e.name,
		Span:        span,
		GroupKey:    group,
		BucketStart: bucketStart,
		Grouped:     e.grouped,
		Payload:     raw,
		UpdatedAt:   e.nowFn().UTC(),
	})
	if err != nil {
		return zero, fmt.Errorf("insert seed: %w", err)
	}
	if !inserted {
		// Lost the seeding race. Discard our seed and read the winner's row.
		row, getErr := e.store.Get(ctx, e.name, span, group, bucketStart)
		if getErr != nil {
			return zero, fmt.Errorf("reload bucket after seed conflict: %w", getErr)
		}
		return decode[P](row.Payload)
	}

	slog.Debug("[Chart] Seeded bucket",
		"chart", e.name,
		"span", span,
		"group", group,
		"bucket_start", bucketStart,
		"init", init,
	)
	return seeded, nil
}

// Window returns exactly limit payloads ending at the current period,
// ordered oldest to newest. Periods with no stored bucket are synthesized:
// interior gaps carry the nearest older bucket's cumulative fields with
// zeroed deltas, periods older than all history carry the oldest known
// snapshot, and a key with no history at all yields all-zero payloads.
// Synthesis is pure computation; the store is read at most limit rows.
func (e *Engine[P]) Window(ctx context.Context, span Span, limit int, group string) ([]P, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("chart %s: window limit must be positive, got %d", e.name, limit)
	}

	current := span.Truncate(e.nowFn())
	rows, err := e.store.Range(ctx, e.name, span, group, current, limit)
	if err != nil {
		return nil, fmt.Errorf("chart %s: range buckets: %w", e.name, err)
	}

	decoded := make([]P, len(rows))
	for i, row := range rows {
		p, decErr := decode[P](row.Payload)
		if decErr != nil {
			return nil, fmt.Errorf("chart %s: bucket %s: %w", e.name, row.BucketStart.Format(time.RFC3339), decErr)
		}
		decoded[i] = p
	}

	out := make([]P, limit)
	step := span.Duration()
	idx := 0
	for i := 0; i < limit; i++ {
		period := current.Add(-time.Duration(i) * step)
		for idx < len(rows) && rows[idx].BucketStart.After(period) {
			idx++
		}
		switch {
		case idx < len(rows) && rows[idx].BucketStart.Equal(period):
			out[limit-1-i] = decoded[idx]
		case idx < len(rows):
			// No activity this period: total unchanged from the nearest
			// older bucket, deltas zero.
			out[limit-1-i] = decoded[idx].CarryForward()
		case len(rows) > 0:
			out[limit-1-i] = decoded[len(rows)-1].CarryForward()
		default:
			var zero P
			out[limit-1-i] = zero
		}
	}
	return out, nil
}

// Series is the registry-facing, untyped view of Window.
func (e *Engine[P]) Series(ctx context.Context, span Span, limit int, group string) (any, error) {
	return e.Window(ctx, span, limit, group)
}

// Rollover seeds the current bucket for every group that was active in the
// previous period (the ungrouped key for ungrouped charts). Invoking it
// twice in one period is harmless: seeding is upsert-on-conflict and totals
// carry from the stored latest bucket, never accumulated twice.
func (e *Engine[P]) Rollover(ctx context.Context, span Span) error {
	current := span.Truncate(e.nowFn())

	groups := []string{""}
	if e.grouped {
		prev := current.Add(-span.Duration())
		active, err := e.store.Groups(ctx, e.name, span, prev)
		if err != nil {
			return fmt.Errorf("chart %s: list active groups: %w", e.name, err)
		}
		groups = active
	}

	for _, group := range groups {
		if _, err := e.ensure(ctx, span, group, current); err != nil {
			return fmt.Errorf("chart %s: rollover %s group %q: %w", e.name, span, group, err)
		}
	}
	return nil
}

func decode[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		var zero P
		return zero, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
