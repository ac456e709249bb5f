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
)

func TestUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemory()

	created, err := store.UpsertByExternalID(ctx, "usrX", "a@b.test",
		models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, now)
	require.NoError(t, err)
	assert.False(t, created.ID.IsNil())
	assert.Equal(t, "usrX", created.ExternalID)

	later := now.Add(time.Hour)
	updated, err := store.UpsertByExternalID(ctx, "usrX", "new@b.test",
		models.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2"}, later)
	require.NoError(t, err)

	// same principal, refreshed identity and tokens
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "new@b.test", updated.Email)
	assert.Equal(t, "at-2", updated.AccessToken)
	assert.Equal(t, "rt-2", updated.RefreshToken)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)
}

func TestFindByIDNotFound(t *testing.T) {
	store := NewMemory()
	_, err := store.FindByID(context.Background(), id.PrincipalID(uuid.New()))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdateTokensRetainsRefreshTokenWhenNotRotated(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemory()

	created, err := store.UpsertByExternalID(ctx, "usrX", "a@b.test",
		models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, now)
	require.NoError(t, err)

	// provider returned a new access token but no refresh token
	err = store.UpdateTokens(ctx, created.ID, models.TokenPair{AccessToken: "at-2"}, now.Add(time.Minute))
	require.NoError(t, err)

	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-2", got.AccessToken)
	assert.Equal(t, "rt-1", got.RefreshToken)
}

func TestUpdateTokensRotatesRefreshTokenWhenIssued(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemory()

	created, err := store.UpsertByExternalID(ctx, "usrX", "a@b.test",
		models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, now)
	require.NoError(t, err)

	err = store.UpdateTokens(ctx, created.ID,
		models.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2"}, now.Add(time.Minute))
	require.NoError(t, err)

	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "rt-2", got.RefreshToken)
}

func TestFindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	created, err := store.UpsertByExternalID(ctx, "usrX", "a@b.test",
		models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, time.Now())
	require.NoError(t, err)

	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	got.AccessToken = "mutated"

	again, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-1", again.AccessToken)
}
