package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockCountsAdapter(t *testing.T) (*CountsAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCountsAdapter(db), mock
}

func TestCountNotes(t *testing.T) {
	adapter, mock := newMockCountsAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountNotes)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := adapter.CountNotes(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(42), count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountNotesQueryError(t *testing.T) {
	adapter, mock := newMockCountsAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountNotes)).
		WithArgs("user-1").
		WillReturnError(errors.New("connection reset"))

	_, err := adapter.CountNotes(context.Background(), "user-1")
	require.Error(t, err)
	require.ErrorContains(t, err, "count notes for user user-1")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountInstances(t *testing.T) {
	adapter, mock := newMockCountsAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountInstances)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(17)))

	count, err := adapter.CountInstances(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(17), count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriveUsage(t *testing.T) {
	adapter, mock := newMockCountsAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryDriveUsage)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(int64(3), int64(40960)))

	count, size, err := adapter.DriveUsage(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.Equal(t, int64(40960), size)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriveUsageEmptyDrive(t *testing.T) {
	adapter, mock := newMockCountsAdapter(t)

	// COALESCE keeps the sum at zero when the user has no files.
	mock.ExpectQuery(regexp.QuoteMeta(queryDriveUsage)).
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(int64(0), int64(0)))

	count, size, err := adapter.DriveUsage(context.Background(), "user-2")
	require.NoError(t, err)
	require.Zero(t, count)
	require.Zero(t, size)

	require.NoError(t, mock.ExpectationsWereMet())
}
