package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge/internal/auth/models"
	"formbridge/internal/auth/store/principal"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/sentinel"
)

type fakeRefresher struct {
	calls int32
	delay time.Duration
	pair  models.TokenPair
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return models.TokenPair{}, f.err
	}
	return f.pair, nil
}

func newTestBroker(t *testing.T, refresher Refresher) (*Broker, principal.Store, *models.Principal) {
	t.Helper()
	store := principal.NewMemory()
	p, err := store.UpsertByExternalID(context.Background(), "ext-1", "a@example.com",
		models.TokenPair{AccessToken: "stale", RefreshToken: "rt-1"}, time.Now().UTC())
	require.NoError(t, err)
	return New(store, refresher, nil, slog.New(slog.DiscardHandler)), store, p
}

func TestDoPassesCurrentToken(t *testing.T) {
	refresher := &fakeRefresher{}
	b, _, p := newTestBroker(t, refresher)

	var seen string
	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		seen = token
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", seen)
	assert.EqualValues(t, 0, atomic.LoadInt32(&refresher.calls))
}

func TestDoRefreshesOnRejectionAndReplaysOnce(t *testing.T) {
	refresher := &fakeRefresher{pair: models.TokenPair{AccessToken: "fresh", RefreshToken: "rt-2"}}
	b, store, p := newTestBroker(t, refresher)

	var tokens []string
	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		tokens = append(tokens, token)
		if token == "stale" {
			return fmt.Errorf("provider said no: %w", sentinel.ErrTokenRejected)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"stale", "fresh"}, tokens)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls))

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "rt-2", stored.RefreshToken)
}

func TestDoRetainsRefreshTokenWhenNotRotated(t *testing.T) {
	refresher := &fakeRefresher{pair: models.TokenPair{AccessToken: "fresh"}}
	b, store, p := newTestBroker(t, refresher)

	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		if token == "stale" {
			return sentinel.ErrTokenRejected
		}
		return nil
	})
	require.NoError(t, err)

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "rt-1", stored.RefreshToken, "unrotated refresh token must survive")
}

func TestDoCoalescesConcurrentRefreshes(t *testing.T) {
	refresher := &fakeRefresher{
		delay: 50 * time.Millisecond,
		pair:  models.TokenPair{AccessToken: "fresh", RefreshToken: "rt-2"},
	}
	b, _, p := newTestBroker(t, refresher)

	const workers = 50
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
				if token == "stale" {
					return sentinel.ErrTokenRejected
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls),
		"rejected callers must share one refresh")
}

func TestDoRefreshRejectedMeansReauthenticate(t *testing.T) {
	refresher := &fakeRefresher{err: sentinel.ErrTokenRejected}
	b, store, p := newTestBroker(t, refresher)

	called := 0
	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		called++
		return sentinel.ErrTokenRejected
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, 1, called, "no replay after a failed refresh")

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "stale", stored.AccessToken)
}

func TestDoReplayRejectedMeansReauthenticate(t *testing.T) {
	refresher := &fakeRefresher{pair: models.TokenPair{AccessToken: "fresh", RefreshToken: "rt-2"}}
	b, _, p := newTestBroker(t, refresher)

	called := 0
	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		called++
		return fmt.Errorf("provider said no: %w", sentinel.ErrTokenRejected)
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized),
		"a rejection of the refreshed token must demand a new login")
	assert.Equal(t, 2, called, "exactly one replay")
	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls), "no second refresh")
}

func TestDoRefreshUnavailableIsTransient(t *testing.T) {
	refresher := &fakeRefresher{err: sentinel.ErrUnavailable}
	b, _, p := newTestBroker(t, refresher)

	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		return sentinel.ErrTokenRejected
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestDoNonAuthErrorsPassThrough(t *testing.T) {
	refresher := &fakeRefresher{}
	b, _, p := newTestBroker(t, refresher)

	boom := errors.New("boom")
	err := b.Do(context.Background(), p.ID, func(ctx context.Context, token string) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, atomic.LoadInt32(&refresher.calls))
}

func TestDoUnknownPrincipal(t *testing.T) {
	b, _, _ := newTestBroker(t, &fakeRefresher{})

	unknown, err := principal.NewMemory().UpsertByExternalID(context.Background(), "ext-other", "b@example.com",
		models.TokenPair{AccessToken: "x"}, time.Now().UTC())
	require.NoError(t, err)

	err = b.Do(context.Background(), unknown.ID, func(ctx context.Context, token string) error {
		t.Fatal("call must not run for unknown principal")
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
