// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

func TestReservedRepository_IsMarked(t *testing.T) {
	resourceID := ulid.Make()

	tests := []struct {
		name   string
		marked bool
	}{
		{name: "marked", marked: true},
		{name: "unmarked", marked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs(resourceID.String()).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.marked))

			repo := NewReservedRepository(mock)
			marked, err := repo.IsMarked(context.Background(), resourceID)
			require.NoError(t, err)
			assert.Equal(t, tt.marked, marked)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReservedRepository_Mark(t *testing.T) {
	resourceID := ulid.Make()

	t.Run("upsert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO access_reserved`).
			WithArgs(resourceID.String(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewReservedRepository(mock)
		require.NoError(t, repo.Mark(context.Background(), resourceID, nil, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown resource maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO access_reserved`).
			WithArgs(resourceID.String(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

		repo := NewReservedRepository(mock)
		err = repo.Mark(context.Background(), resourceID, nil, nil)
		assert.ErrorIs(t, err, accessctl.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReservedRepository_Unmark(t *testing.T) {
	resourceID := ulid.Make()

	t.Run("removes marker", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM access_reserved`).
			WithArgs(resourceID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewReservedRepository(mock)
		require.NoError(t, repo.Unmark(context.Background(), resourceID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent marker is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM access_reserved`).
			WithArgs(resourceID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewReservedRepository(mock)
		require.NoError(t, repo.Unmark(context.Background(), resourceID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
