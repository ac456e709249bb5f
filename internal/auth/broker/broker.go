// Package broker mediates every authenticated call to the provider. Callers
// hand it a closure that takes an access token; the broker supplies the
// stored token, and on a definitive rejection it refreshes the pair once and
// replays the closure. Concurrent rejections for the same principal share a
// single refresh.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"formbridge/internal/auth/models"
	"formbridge/internal/auth/store/principal"
	"formbridge/internal/platform/metrics"
	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/sentinel"
	"formbridge/pkg/requestcontext"
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// Call is the unit of provider work the broker executes on a caller's behalf.
type Call func(ctx context.Context, accessToken string) error

// Broker owns access-token selection and refresh for all provider calls.
type Broker struct {
	principals principal.Store
	refresher  Refresher
	group      singleflight.Group
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func New(principals principal.Store, refresher Refresher, m *metrics.Metrics, log *slog.Logger) *Broker {
	return &Broker{
		principals: principals,
		refresher:  refresher,
		metrics:    m,
		log:        log,
	}
}

// Do runs call with the principal's current access token. If the provider
// rejects the token, Do refreshes the pair and replays call exactly once with
// the new token. A refresh failure surfaces as unauthorized so the caller can
// redirect the user back through login.
func (b *Broker) Do(ctx context.Context, principalID id.PrincipalID, call Call) error {
	p, err := b.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeUnauthorized, "unknown principal")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load principal")
	}

	err = call(ctx, p.AccessToken)
	if err == nil || !errors.Is(err, sentinel.ErrTokenRejected) {
		return err
	}

	token, err := b.refresh(ctx, principalID, p.AccessToken, p.RefreshToken)
	if err != nil {
		return err
	}

	// A rejection of the freshly issued token means the authorization itself
	// is gone, not just the access token. No second refresh.
	if err := call(ctx, token); err != nil {
		if errors.Is(err, sentinel.ErrTokenRejected) {
			return dErrors.Wrap(err, dErrors.CodeUnauthorized, "provider rejected refreshed token")
		}
		return err
	}
	return nil
}

// refresh obtains a fresh access token for the principal. Callers that lose
// the singleflight race wait for the winner's result instead of issuing their
// own refresh. staleToken identifies the token the caller saw rejected, so a
// refresh completed by another caller moments ago is reused directly.
func (b *Broker) refresh(ctx context.Context, principalID id.PrincipalID, staleToken, refreshToken string) (string, error) {
	v, err, _ := b.group.Do(principalID.String(), func() (any, error) {
		// A concurrent caller may have refreshed between our rejection and
		// winning the flight. Re-read before spending the refresh token.
		if p, err := b.principals.FindByID(ctx, principalID); err == nil && p.AccessToken != staleToken {
			return p.AccessToken, nil
		}

		// The refresh must finish even if the originating request is
		// cancelled, otherwise waiters sharing the flight are stranded.
		refreshCtx := context.WithoutCancel(ctx)

		pair, err := b.refresher.Refresh(refreshCtx, refreshToken)
		if err != nil {
			b.metrics.IncTokenRefreshFailures()
			if errors.Is(err, sentinel.ErrUnavailable) {
				return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "token refresh")
			}
			return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "session expired, please sign in again")
		}

		now := requestcontext.Now(refreshCtx)
		if err := b.principals.UpdateTokens(refreshCtx, principalID, pair, now); err != nil {
			b.log.Error("persist refreshed tokens", "principal_id", principalID, "error", err)
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist refreshed tokens")
		}

		b.metrics.IncTokenRefreshes()
		b.log.Info("access token refreshed", "principal_id", principalID)
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	token, ok := v.(string)
	if !ok {
		return "", dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unexpected refresh result %T", v))
	}
	return token, nil
}
