// Package drive tracks each user's drive usage over time: file count and
// total byte size, with per-period added/removed breakdowns. Unlike the
// notes chart, its deltas are not unit-sized - file sizes flow through.
package drive

import (
	"context"
	"fmt"

	"github.com/statline-io/statline/internal/core/chart"
)

// Name is the chart name used in bucket identities and query paths.
const Name = "perUserDrive"

// Payload is the per-bucket field document.
type Payload struct {
	// TotalCount and TotalSize are cumulative.
	TotalCount int64 `json:"totalCount"`
	TotalSize  int64 `json:"totalSize"`
	// The remaining fields are per-bucket deltas.
	IncCount int64 `json:"incCount"`
	IncSize  int64 `json:"incSize"`
	DecCount int64 `json:"decCount"`
	DecSize  int64 `json:"decSize"`
}

func (p Payload) Add(d Payload) Payload {
	p.TotalCount += d.TotalCount
	p.TotalSize += d.TotalSize
	p.IncCount += d.IncCount
	p.IncSize += d.IncSize
	p.DecCount += d.DecCount
	p.DecSize += d.DecSize
	return p
}

func (p Payload) CarryForward() Payload {
	return Payload{TotalCount: p.TotalCount, TotalSize: p.TotalSize}
}

// File carries the fields of a drive event that matter to this chart.
type File struct {
	UserID string
	Size   int64
}

// UsageSource is the authoritative drive usage, queried once per key when
// the chart seeds its first bucket.
type UsageSource interface {
	DriveUsage(ctx context.Context, userID string) (count int64, size int64, err error)
}

// Chart is the per-user drive chart, grouped by user ID.
type Chart struct {
	*chart.Engine[Payload]
	usage UsageSource
}

// New constructs the chart over the given bucket store.
func New(store chart.Store, usage UsageSource) *Chart {
	c := &Chart{usage: usage}
	c.Engine = chart.NewEngine[Payload](chart.Options{Name: Name, Grouped: true}, store, c)
	return c
}

func (c *Chart) Template(ctx context.Context, init bool, latest *Payload, group string) (Payload, error) {
	if init {
		count, size, err := c.usage.DriveUsage(ctx, group)
		if err != nil {
			return Payload{}, fmt.Errorf("drive usage: %w", err)
		}
		return Payload{TotalCount: count, TotalSize: size}, nil
	}
	if latest != nil {
		return latest.CarryForward(), nil
	}
	return Payload{}, nil
}

// Update records a file being uploaded (added=true) or deleted (added=false).
func (c *Chart) Update(ctx context.Context, file File, added bool) error {
	var delta Payload
	if added {
		delta.TotalCount = 1
		delta.TotalSize = file.Size
		delta.IncCount = 1
		delta.IncSize = file.Size
	} else {
		delta.TotalCount = -1
		delta.TotalSize = -file.Size
		delta.DecCount = 1
		delta.DecSize = file.Size
	}
	return c.Commit(ctx, file.UserID, delta)
}
