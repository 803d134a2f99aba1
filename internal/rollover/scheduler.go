// Package rollover drives the periodic rollover of every registered chart
// into its new hour/day bucket. The scheduler only decides when to call;
// idempotence (no duplicate buckets, no double-seeding) is guaranteed by the
// engine's upsert-on-conflict seeding, so overlapping or repeated invocations
// within one period are harmless.
package rollover

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/statline-io/statline/internal/core/chart"
)

// boundaryGrace delays the wake-up slightly past the boundary so clock
// truncation lands inside the new period.
const boundaryGrace = time.Second

// rolloverConcurrency caps parallel chart rollovers per pass.
const rolloverConcurrency = 4

// Scheduler runs one rollover loop per span.
type Scheduler struct {
	registry *chart.Registry
	spans    []chart.Span
	nowFn    func() time.Time
}

// NewScheduler creates a scheduler over a populated registry.
func NewScheduler(registry *chart.Registry) *Scheduler {
	return &Scheduler{
		registry: registry,
		spans:    chart.Spans(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the rollover loops and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, span := range s.spans {
		g.Go(func() error {
			s.run(ctx, span)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) run(ctx context.Context, span chart.Span) {
	slog.Info("[Rollover] Starting rollover loop", "span", span, "charts", s.registry.Names())

	// Roll immediately on startup to catch up after downtime. Seeding is
	// idempotent, so this is safe even if another pass already ran.
	s.rolloverAll(ctx, span)

	for {
		timer := time.NewTimer(s.untilNextBoundary(span))
		select {
		case <-timer.C:
			s.rolloverAll(ctx, span)
		case <-ctx.Done():
			timer.Stop()
			slog.Info("[Rollover] Stopping (context cancelled)", "span", span)
			return
		}
	}
}

// rolloverAll asks every registered chart to roll into the current period.
// Failures are logged per chart; one chart's outage does not block others,
// and the next boundary retries naturally.
func (s *Scheduler) rolloverAll(ctx context.Context, span chart.Span) {
	charts := s.registry.All()

	g := new(errgroup.Group)
	g.SetLimit(rolloverConcurrency)
	for _, c := range charts {
		g.Go(func() error {
			if err := c.Rollover(ctx, span); err != nil {
				slog.Error("[Rollover] Chart rollover failed",
					"chart", c.Name(),
					"span", span,
					"error", err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	slog.Info("[Rollover] Rollover pass complete", "span", span, "charts", len(charts))
}

func (s *Scheduler) untilNextBoundary(span chart.Span) time.Duration {
	now := s.nowFn()
	next := span.Truncate(now).Add(span.Duration())
	return next.Sub(now) + boundaryGrace
}
