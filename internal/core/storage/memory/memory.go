// Package memory provides an in-memory chart.Store used by tests and by
// local development runs without a database. A single mutex serializes
// read-modify-write cycles, which is a superset of the per-bucket mutual
// exclusion the engine requires.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/statline-io/statline/internal/core/chart"
)

type bucketKey struct {
	name   string
	span   chart.Span
	group  string
	bucket int64 // unix seconds of bucket start
}

// Store is an in-memory implementation of chart.Store.
type Store struct {
	mu   sync.Mutex
	rows map[bucketKey]chart.Row
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{rows: make(map[bucketKey]chart.Row)}
}

func keyOf(name string, span chart.Span, group string, bucketStart time.Time) bucketKey {
	return bucketKey{name: name, span: span, group: group, bucket: bucketStart.UTC().Unix()}
}

func cloneRow(row chart.Row) chart.Row {
	out := row
	out.Payload = append(json.RawMessage(nil), row.Payload...)
	return out
}

func (s *Store) Get(_ context.Context, name string, span chart.Span, group string, bucketStart time.Time) (*chart.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[keyOf(name, span, group, bucketStart)]
	if !ok {
		return nil, chart.ErrNotFound
	}
	cloned := cloneRow(row)
	return &cloned, nil
}

func (s *Store) Latest(_ context.Context, name string, span chart.Span, group string) (*chart.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *chart.Row
	for k, row := range s.rows {
		if k.name != name || k.span != span || k.group != group {
			continue
		}
		if latest == nil || row.BucketStart.After(latest.BucketStart) {
			cloned := cloneRow(row)
			latest = &cloned
		}
	}
	if latest == nil {
		return nil, chart.ErrNotFound
	}
	return latest, nil
}

func (s *Store) InsertIfAbsent(_ context.Context, row chart.Row) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(row.ChartName, row.Span, row.GroupKey, row.BucketStart)
	if _, exists := s.rows[k]; exists {
		return false, nil
	}
	row.BucketStart = row.BucketStart.UTC()
	s.rows[k] = cloneRow(row)
	return true, nil
}

func (s *Store) Apply(_ context.Context, name string, span chart.Span, group string, bucketStart time.Time,
	merge func(payload json.RawMessage) (json.RawMessage, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(name, span, group, bucketStart)
	row, ok := s.rows[k]
	if !ok {
		return chart.ErrNotFound
	}

	merged, err := merge(row.Payload)
	if err != nil {
		return err
	}
	row.Payload = append(json.RawMessage(nil), merged...)
	row.UpdatedAt = time.Now().UTC()
	s.rows[k] = row
	return nil
}

func (s *Store) Range(_ context.Context, name string, span chart.Span, group string, until time.Time, limit int) ([]chart.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []chart.Row
	for k, row := range s.rows {
		if k.name != name || k.span != span || k.group != group {
			continue
		}
		if row.BucketStart.After(until) {
			continue
		}
		matched = append(matched, cloneRow(row))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].BucketStart.After(matched[j].BucketStart)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) Groups(_ context.Context, name string, span chart.Span, bucketStart time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := bucketStart.UTC().Unix()
	var groups []string
	for k := range s.rows {
		if k.name != name || k.span != span || k.bucket != target || k.group == "" {
			continue
		}
		groups = append(groups, k.group)
	}
	sort.Strings(groups)
	return groups, nil
}
