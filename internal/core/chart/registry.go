package chart

import (
	"context"
	"fmt"
)

// ChartService is the registry-facing view of a chart engine: everything the
// query facade and the rollover scheduler need, without the payload type.
type ChartService interface {
	Name() string
	Grouped() bool
	Series(ctx context.Context, span Span, limit int, group string) (any, error)
	Rollover(ctx context.Context, span Span) error
}

// Registry holds every chart constructed at process start. Charts are
// stateless besides the store handle they hold, so the registry has no
// teardown; it is built once in main and read-only afterwards.
type Registry struct {
	charts map[string]ChartService
	order  []string
}

// NewRegistry creates an empty chart registry.
func NewRegistry() *Registry {
	return &Registry{charts: make(map[string]ChartService)}
}

// Register adds a chart. Registering the same name twice is a wiring bug.
func (r *Registry) Register(c ChartService) error {
	if _, exists := r.charts[c.Name()]; exists {
		return fmt.Errorf("chart %q already registered", c.Name())
	}
	r.charts[c.Name()] = c
	r.order = append(r.order, c.Name())
	return nil
}

// Get looks up a chart by name.
func (r *Registry) Get(name string) (ChartService, bool) {
	c, ok := r.charts[name]
	return c, ok
}

// All returns every registered chart in registration order.
func (r *Registry) All() []ChartService {
	out := make([]ChartService, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.charts[name])
	}
	return out
}

// Names returns the registered chart names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
