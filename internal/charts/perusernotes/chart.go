// Package perusernotes tracks the note count of each user over time:
// a running total plus per-period increments, decrements and a breakdown of
// the increment by note kind.
package perusernotes

import (
	"context"
	"fmt"

	"github.com/statline-io/statline/internal/core/chart"
)

// Name is the chart name used in bucket identities and query paths.
const Name = "perUserNotes"

// Payload is the per-bucket field document.
type Payload struct {
	// Total is the user's cumulative note count as of this bucket.
	Total int64 `json:"total"`
	// Inc and Dec are per-bucket deltas, reset each period.
	Inc   int64 `json:"inc"`
	Dec   int64 `json:"dec"`
	Diffs Diffs `json:"diffs"`
}

// Diffs breaks the per-bucket change down by note kind.
type Diffs struct {
	Normal int64 `json:"normal"`
	Reply  int64 `json:"reply"`
	Renote int64 `json:"renote"`
}

func (p Payload) Add(d Payload) Payload {
	p.Total += d.Total
	p.Inc += d.Inc
	p.Dec += d.Dec
	p.Diffs.Normal += d.Diffs.Normal
	p.Diffs.Reply += d.Diffs.Reply
	p.Diffs.Renote += d.Diffs.Renote
	return p
}

func (p Payload) CarryForward() Payload {
	return Payload{Total: p.Total}
}

// Note carries the fields of a note event that matter to this chart.
type Note struct {
	UserID     string
	ReplyToID  string
	RenoteOfID string
}

// NoteSource is the authoritative note count, queried once per key when the
// chart seeds its first bucket.
type NoteSource interface {
	CountNotes(ctx context.Context, userID string) (int64, error)
}

// Chart is the per-user notes chart, grouped by user ID.
type Chart struct {
	*chart.Engine[Payload]
	notes NoteSource
}

// New constructs the chart over the given bucket store.
func New(store chart.Store, notes NoteSource) *Chart {
	c := &Chart{notes: notes}
	c.Engine = chart.NewEngine[Payload](chart.Options{Name: Name, Grouped: true}, store, c)
	return c
}

// Template seeds a new bucket. On init the total comes from the live note
// count, so charting started mid-history begins at the true value rather
// than zero.
func (c *Chart) Template(ctx context.Context, init bool, latest *Payload, group string) (Payload, error) {
	if init {
		total, err := c.notes.CountNotes(ctx, group)
		if err != nil {
			return Payload{}, fmt.Errorf("count notes: %w", err)
		}
		return Payload{Total: total}, nil
	}
	if latest != nil {
		return latest.CarryForward(), nil
	}
	return Payload{}, nil
}

// Update records a note being created (added=true) or deleted (added=false).
func (c *Chart) Update(ctx context.Context, note Note, added bool) error {
	sign := int64(1)
	if !added {
		sign = -1
	}

	delta := Payload{Total: sign}
	if added {
		delta.Inc = 1
	} else {
		delta.Dec = 1
	}

	switch {
	case note.ReplyToID != "":
		delta.Diffs.Reply = sign
	case note.RenoteOfID != "":
		delta.Diffs.Renote = sign
	default:
		delta.Diffs.Normal = sign
	}

	return c.Commit(ctx, note.UserID, delta)
}
