// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/accessctl"
)

var grantCols = []string{"id", "resource_id", "user_id", "token", "enabled", "temporal", "start_date", "end_date", "created_at", "updated_at"}

func grantRow(id, resourceID ulid.ULID, userID *string, token *string, enabled bool) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(grantCols).
		AddRow(id.String(), resourceID.String(), userID, token, enabled, false, nil, nil, now, now)
}

func TestGrantRepository_FindByUser(t *testing.T) {
	grantID := ulid.Make()
	resourceID := ulid.Make()
	userID := ulid.Make()
	userStr := userID.String()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM access_grants WHERE resource_id`).
			WithArgs(resourceID.String(), userID.String()).
			WillReturnRows(grantRow(grantID, resourceID, &userStr, nil, true))

		repo := NewGrantRepository(mock)
		grant, err := repo.FindByUser(context.Background(), resourceID, userID)
		require.NoError(t, err)
		assert.Equal(t, grantID, grant.ID)
		require.NotNil(t, grant.UserID)
		assert.Equal(t, userID, *grant.UserID)
		assert.True(t, grant.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM access_grants WHERE resource_id`).
			WithArgs(resourceID.String(), userID.String()).
			WillReturnRows(pgxmock.NewRows(grantCols))

		repo := NewGrantRepository(mock)
		_, err = repo.FindByUser(context.Background(), resourceID, userID)
		assert.ErrorIs(t, err, accessctl.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGrantRepository_Upsert(t *testing.T) {
	resourceID := ulid.Make()
	userID := ulid.Make()
	userStr := userID.String()

	t.Run("existing grant is updated in place", func(t *testing.T) {
		existingID := ulid.Make()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM access_grants WHERE resource_id`).
			WithArgs(resourceID.String(), userID.String()).
			WillReturnRows(grantRow(existingID, resourceID, &userStr, nil, false))
		mock.ExpectQuery(`UPDATE access_grants`).
			WithArgs(existingID.String(), true, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(grantRow(existingID, resourceID, &userStr, nil, true))

		repo := NewGrantRepository(mock)
		stored, err := repo.Upsert(context.Background(), &accessctl.Grant{
			ResourceID: resourceID,
			UserID:     &userID,
			Enabled:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, existingID, stored.ID, "idempotent upsert preserves the grant id")
		assert.True(t, stored.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing grant is created", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM access_grants WHERE resource_id`).
			WithArgs(resourceID.String(), userID.String()).
			WillReturnRows(pgxmock.NewRows(grantCols))
		newID := ulid.Make()
		mock.ExpectQuery(`INSERT INTO access_grants`).
			WithArgs(pgxmock.AnyArg(), resourceID.String(), &userStr, pgxmock.AnyArg(), true, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(grantRow(newID, resourceID, &userStr, nil, true))

		repo := NewGrantRepository(mock)
		stored, err := repo.Upsert(context.Background(), &accessctl.Grant{
			ResourceID: resourceID,
			UserID:     &userID,
			Enabled:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, newID, stored.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token identity matches by token", func(t *testing.T) {
		token := "tok-abc"
		existingID := ulid.Make()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM access_grants WHERE resource_id`).
			WithArgs(resourceID.String(), token).
			WillReturnRows(grantRow(existingID, resourceID, nil, &token, false))
		mock.ExpectQuery(`UPDATE access_grants`).
			WithArgs(existingID.String(), true, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(grantRow(existingID, resourceID, nil, &token, true))

		repo := NewGrantRepository(mock)
		stored, err := repo.Upsert(context.Background(), &accessctl.Grant{
			ResourceID: resourceID,
			Token:      &token,
			Enabled:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, existingID, stored.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGrantRepository_ListByResource(t *testing.T) {
	resourceID := ulid.Make()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows(grantCols).
		AddRow(ulid.Make().String(), resourceID.String(), nil, nil, true, false, nil, nil, now, now).
		AddRow(ulid.Make().String(), resourceID.String(), nil, nil, false, false, nil, nil, now, now)
	mock.ExpectQuery(`FROM access_grants WHERE resource_id`).
		WithArgs(resourceID.String()).
		WillReturnRows(rows)

	repo := NewGrantRepository(mock)
	grants, err := repo.ListByResource(context.Background(), resourceID)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
