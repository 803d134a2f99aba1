package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/statline-io/statline/internal/core/chart"
)

const (
	// queryInsertBucketIfAbsent seeds a bucket. ON CONFLICT DO NOTHING makes
	// concurrent seeding races converge to a single stored row; the losing
	// writer sees zero rows affected and re-reads the winner.
	queryInsertBucketIfAbsent = `
		INSERT INTO chart_buckets (
			chart_name, span, group_key, bucket_start, is_grouped, payload, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chart_name, span, group_key, bucket_start) DO NOTHING
	`

	querySelectBucket = `
		SELECT payload, is_grouped, updated_at
		FROM chart_buckets
		WHERE chart_name = $1 AND span = $2 AND group_key = $3 AND bucket_start = $4
	`

	querySelectLatestBucket = `
		SELECT bucket_start, payload, is_grouped, updated_at
		FROM chart_buckets
		WHERE chart_name = $1 AND span = $2 AND group_key = $3
		ORDER BY bucket_start DESC
		LIMIT 1
	`

	// querySelectBucketForUpdate takes the row lock that serializes one
	// bucket's read-modify-write cycle. Other identities are unaffected.
	querySelectBucketForUpdate = `
		SELECT payload
		FROM chart_buckets
		WHERE chart_name = $1 AND span = $2 AND group_key = $3 AND bucket_start = $4
		FOR UPDATE
	`

	queryUpdateBucketPayload = `
		UPDATE chart_buckets
		SET payload = $5, updated_at = $6
		WHERE chart_name = $1 AND span = $2 AND group_key = $3 AND bucket_start = $4
	`

	queryRangeBuckets = `
		SELECT bucket_start, payload, is_grouped, updated_at
		FROM chart_buckets
		WHERE chart_name = $1 AND span = $2 AND group_key = $3 AND bucket_start <= $4
		ORDER BY bucket_start DESC
		LIMIT $5
	`

	queryGroupsAtBucket = `
		SELECT group_key
		FROM chart_buckets
		WHERE chart_name = $1 AND span = $2 AND bucket_start = $3 AND group_key <> ''
		ORDER BY group_key ASC
	`
)

// BucketAdapter implements chart.Store using PostgreSQL. The identity tuple
// (chart_name, span, group_key, bucket_start) is the primary key, so
// monotonic identity holds at the storage layer, not just by convention.
type BucketAdapter struct {
	db *sql.DB
}

// NewBucketAdapter creates a bucket store sharing the given connection pool.
func NewBucketAdapter(db *sql.DB) *BucketAdapter {
	return &BucketAdapter{db: db}
}

func (a *BucketAdapter) Get(ctx context.Context, name string, span chart.Span, group string, bucketStart time.Time) (*chart.Row, error) {
	row := chart.Row{
		ChartName:   name,
		Span:        span,
		GroupKey:    group,
		BucketStart: bucketStart.UTC(),
	}

	err := a.db.QueryRowContext(ctx, querySelectBucket, name, string(span), group, bucketStart.UTC()).
		Scan(&row.Payload, &row.Grouped, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, chart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select bucket: %w", err)
	}
	return &row, nil
}

func (a *BucketAdapter) Latest(ctx context.Context, name string, span chart.Span, group string) (*chart.Row, error) {
	row := chart.Row{
		ChartName: name,
		Span:      span,
		GroupKey:  group,
	}

	err := a.db.QueryRowContext(ctx, querySelectLatestBucket, name, string(span), group).
		Scan(&row.BucketStart, &row.Payload, &row.Grouped, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, chart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest bucket: %w", err)
	}
	row.BucketStart = row.BucketStart.UTC()
	return &row, nil
}

func (a *BucketAdapter) InsertIfAbsent(ctx context.Context, row chart.Row) (bool, error) {
	result, err := a.db.ExecContext(ctx, queryInsertBucketIfAbsent,
		row.ChartName,
		string(row.Span),
		row.GroupKey,
		row.BucketStart.UTC(),
		row.Grouped,
		[]byte(row.Payload),
		row.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert bucket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert bucket: rows affected: %w", err)
	}
	return affected == 1, nil
}

// Apply runs merge against one bucket's payload under a row lock. The lock
// is scoped to the single identity tuple and released on every exit path by
// the deferred rollback.
func (a *BucketAdapter) Apply(ctx context.Context, name string, span chart.Span, group string, bucketStart time.Time,
	merge func(payload json.RawMessage) (json.RawMessage, error)) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply delta: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var payload []byte
	err = tx.QueryRowContext(ctx, querySelectBucketForUpdate, name, string(span), group, bucketStart.UTC()).
		Scan(&payload)
	if err == sql.ErrNoRows {
		return chart.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("apply delta: lock bucket: %w", err)
	}

	merged, err := merge(payload)
	if err != nil {
		return fmt.Errorf("apply delta: merge payload: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateBucketPayload,
		name, string(span), group, bucketStart.UTC(), []byte(merged), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply delta: update bucket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply delta: rows affected: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("apply delta: bucket row vanished under lock")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply delta: commit: %w", err)
	}
	return nil
}

func (a *BucketAdapter) Range(ctx context.Context, name string, span chart.Span, group string, until time.Time, limit int) ([]chart.Row, error) {
	rows, err := a.db.QueryContext(ctx, queryRangeBuckets, name, string(span), group, until.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("range buckets: %w", err)
	}
	defer rows.Close()

	var out []chart.Row
	for rows.Next() {
		row := chart.Row{
			ChartName: name,
			Span:      span,
			GroupKey:  group,
		}
		if err := rows.Scan(&row.BucketStart, &row.Payload, &row.Grouped, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("range buckets: scan row: %w", err)
		}
		row.BucketStart = row.BucketStart.UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range buckets: iterate rows: %w", err)
	}
	return out, nil
}

func (a *BucketAdapter) Groups(ctx context.Context, name string, span chart.Span, bucketStart time.Time) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, queryGroupsAtBucket, name, string(span), bucketStart.UTC())
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, fmt.Errorf("list groups: scan row: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: iterate rows: %w", err)
	}
	return groups, nil
}
