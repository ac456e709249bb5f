// Package handler wires the login endpoints: the redirect into the provider's
// authorization page, the OAuth callback, and the principal profile.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"formbridge/internal/auth/models"
	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/httputil"
	"formbridge/pkg/requestcontext"
)

// Service defines the login operations the handler exposes.
type Service interface {
	BeginLogin(ctx context.Context, now time.Time) (string, error)
	CompleteLogin(ctx context.Context, state, code string, now time.Time) (string, error)
	Profile(ctx context.Context, principalID id.PrincipalID) (models.Profile, error)
}

// Handler wires auth endpoints to the auth service.
type Handler struct {
	service     Service
	frontendURL string
	requireAuth func(http.Handler) http.Handler
	logger      *slog.Logger
}

// New constructs an auth handler. frontendURL is where the callback sends the
// browser once a session token has been minted.
func New(service Service, frontendURL string, requireAuth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		frontendURL: frontendURL,
		requireAuth: requireAuth,
		logger:      logger,
	}
}

// Register mounts auth endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/start", h.HandleStart)
	r.Get("/auth/callback", h.HandleCallback)
	r.With(h.requireAuth).Get("/principals/{principalID}", h.HandleProfile)
}

// HandleStart handles GET /auth/start: it sends the browser to the provider's
// authorization page with fresh PKCE material.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authorizeURL, err := h.service.BeginLogin(ctx, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "begin login failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// HandleCallback handles GET /auth/callback: it consumes the attempt,
// completes the exchange, and hands the browser back to the frontend with the
// session token in the query. Only a completed login redirects; an invalid or
// denied attempt answers 400 and an upstream failure answers with its own
// status, so the browser never lands on the frontend without a token.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if denied := r.URL.Query().Get("error"); denied != "" {
		h.logger.WarnContext(ctx, "authorization denied at provider",
			"request_id", requestID,
			"provider_error", denied,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "authorization was denied, please try logging in again"))
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	session, err := h.service.CompleteLogin(ctx, state, code, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "complete login failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	u, _ := url.Parse(h.frontendURL)
	q := u.Query()
	q.Set("token", session)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// HandleProfile handles GET /principals/{principalID}. Principals may only
// read their own profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if principalID != requestcontext.PrincipalID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot read another principal's profile"))
		return
	}

	profile, err := h.service.Profile(ctx, principalID)
	if err != nil {
		h.logger.ErrorContext(ctx, "load profile failed",
			"request_id", requestcontext.RequestID(ctx),
			"principal_id", principalID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

