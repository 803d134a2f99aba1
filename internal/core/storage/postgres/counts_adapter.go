package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	queryCountNotes = `SELECT COUNT(*) FROM notes WHERE user_id = $1`

	queryCountInstances = `SELECT COUNT(*) FROM federation_instances`

	// queryDriveUsage aggregates both dimensions of a user's drive in one
	// round trip. COALESCE keeps SUM non-NULL for users with no files.
	queryDriveUsage = `
		SELECT COUNT(*), COALESCE(SUM(size), 0)
		FROM drive_files
		WHERE user_id = $1
	`
)

// CountsAdapter serves the authoritative source-of-truth queries that chart
// templates use when seeding a key for the first time. It reads the
// platform's primary tables; statline never writes them.
type CountsAdapter struct {
	db *sql.DB
}

// NewCountsAdapter creates a counts adapter sharing the given connection pool.
func NewCountsAdapter(db *sql.DB) *CountsAdapter {
	return &CountsAdapter{db: db}
}

// CountNotes returns the total number of notes authored by a user.
func (a *CountsAdapter) CountNotes(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := a.db.QueryRowContext(ctx, queryCountNotes, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notes for user %s: %w", userID, err)
	}
	return count, nil
}

// CountInstances returns the number of known federated instances.
func (a *CountsAdapter) CountInstances(ctx context.Context) (int64, error) {
	var count int64
	if err := a.db.QueryRowContext(ctx, queryCountInstances).Scan(&count); err != nil {
		return 0, fmt.Errorf("count federation instances: %w", err)
	}
	return count, nil
}

// DriveUsage returns the file count and total byte size of a user's drive.
func (a *CountsAdapter) DriveUsage(ctx context.Context, userID string) (count int64, size int64, err error) {
	if err := a.db.QueryRowContext(ctx, queryDriveUsage, userID).Scan(&count, &size); err != nil {
		return 0, 0, fmt.Errorf("drive usage for user %s: %w", userID, err)
	}
	return count, size, nil
}
