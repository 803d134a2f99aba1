// Package federation tracks the number of federated instances this server
// knows about. The chart is ungrouped: one series for the whole server.
package federation

import (
	"context"
	"fmt"

	"github.com/statline-io/statline/internal/core/chart"
)

// Name is the chart name used in bucket identities and query paths.
const Name = "federation"

// Payload is the per-bucket field document.
type Payload struct {
	Instances Counter `json:"instances"`
}

// Counter is a cumulative total with per-bucket inc/dec deltas.
type Counter struct {
	Total int64 `json:"total"`
	Inc   int64 `json:"inc"`
	Dec   int64 `json:"dec"`
}

func (p Payload) Add(d Payload) Payload {
	p.Instances.Total += d.Instances.Total
	p.Instances.Inc += d.Instances.Inc
	p.Instances.Dec += d.Instances.Dec
	return p
}

func (p Payload) CarryForward() Payload {
	return Payload{Instances: Counter{Total: p.Instances.Total}}
}

// InstanceSource is the authoritative instance count for first-seed.
type InstanceSource interface {
	CountInstances(ctx context.Context) (int64, error)
}

// Chart is the federation activity chart.
type Chart struct {
	*chart.Engine[Payload]
	instances InstanceSource
}

// New constructs the chart over the given bucket store.
func New(store chart.Store, instances InstanceSource) *Chart {
	c := &Chart{instances: instances}
	c.Engine = chart.NewEngine[Payload](chart.Options{Name: Name, Grouped: false}, store, c)
	return c
}

func (c *Chart) Template(ctx context.Context, init bool, latest *Payload, _ string) (Payload, error) {
	if init {
		total, err := c.instances.CountInstances(ctx)
		if err != nil {
			return Payload{}, fmt.Errorf("count instances: %w", err)
		}
		return Payload{Instances: Counter{Total: total}}, nil
	}
	if latest != nil {
		return latest.CarryForward(), nil
	}
	return Payload{}, nil
}

// Update records an instance joining (added=true) or being removed
// (added=false) from the federation.
func (c *Chart) Update(ctx context.Context, added bool) error {
	var delta Payload
	if added {
		delta.Instances.Total = 1
		delta.Instances.Inc = 1
	} else {
		delta.Instances.Total = -1
		delta.Instances.Dec = 1
	}
	return c.Commit(ctx, "", delta)
}
