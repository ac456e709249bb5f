//go:build integration

package principal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge/internal/auth/models"
	id "formbridge/pkg/domain"
	"formbridge/pkg/platform/sentinel"
	"formbridge/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.NewPostgresContainer(t)
	store := NewPostgres(pg.DB)
	ctx := context.Background()

	t.Run("upsert creates then updates", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "principals"))
		now := time.Now().UTC().Truncate(time.Microsecond)

		created, err := store.UpsertByExternalID(ctx, "usr-1", "a@example.com",
			models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, now)
		require.NoError(t, err)
		assert.Equal(t, "usr-1", created.ExternalID)
		assert.Equal(t, "rt-1", created.RefreshToken)

		later := now.Add(time.Minute)
		updated, err := store.UpsertByExternalID(ctx, "usr-1", "new@example.com",
			models.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2"}, later)
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID, "upsert must not mint a second principal")
		assert.Equal(t, "new@example.com", updated.Email)
		assert.Equal(t, "at-2", updated.AccessToken)
		assert.Equal(t, "rt-2", updated.RefreshToken)
	})

	t.Run("upsert keeps refresh token when not rotated", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "principals"))
		now := time.Now().UTC().Truncate(time.Microsecond)

		_, err := store.UpsertByExternalID(ctx, "usr-1", "a@example.com",
			models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-keep"}, now)
		require.NoError(t, err)

		updated, err := store.UpsertByExternalID(ctx, "usr-1", "a@example.com",
			models.TokenPair{AccessToken: "at-2"}, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "rt-keep", updated.RefreshToken)
	})

	t.Run("find by id", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "principals"))
		now := time.Now().UTC().Truncate(time.Microsecond)

		created, err := store.UpsertByExternalID(ctx, "usr-1", "a@example.com",
			models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, now)
		require.NoError(t, err)

		found, err := store.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ExternalID, found.ExternalID)
		assert.Equal(t, created.AccessToken, found.AccessToken)
		assert.WithinDuration(t, now, found.CreatedAt, time.Millisecond)

		_, err = store.FindByID(ctx, id.PrincipalID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("update tokens", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "principals"))
		now := time.Now().UTC().Truncate(time.Microsecond)

		created, err := store.UpsertByExternalID(ctx, "usr-1", "a@example.com",
			models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, now)
		require.NoError(t, err)

		err = store.UpdateTokens(ctx, created.ID,
			models.TokenPair{AccessToken: "at-2"}, now.Add(time.Minute))
		require.NoError(t, err)

		found, err := store.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "at-2", found.AccessToken)
		assert.Equal(t, "rt-1", found.RefreshToken, "empty refresh token must not clobber")

		err = store.UpdateTokens(ctx, id.PrincipalID(uuid.New()),
			models.TokenPair{AccessToken: "at-3"}, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
