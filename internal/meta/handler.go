// Package meta exposes the remote store's schema to the form builder: the
// bases the signed-in principal can reach and the tables inside one base.
// Both calls run on the caller's own tokens through the broker.
package meta

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"formbridge/internal/airtable"
	"formbridge/internal/auth/broker"
	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/httputil"
	"formbridge/pkg/requestcontext"
)

// Broker executes provider calls with a principal's current access token.
type Broker interface {
	Do(ctx context.Context, principalID id.PrincipalID, call broker.Call) error
}

// Schema is the slice of the provider client serving schema reads.
type Schema interface {
	ListBases(ctx context.Context, token string) ([]airtable.Base, error)
	ListTables(ctx context.Context, token, baseID string) ([]airtable.Table, error)
}

// Handler wires schema-browsing endpoints to the provider client.
type Handler struct {
	broker      Broker
	schema      Schema
	requireAuth func(http.Handler) http.Handler
	logger      *slog.Logger
}

func New(broker Broker, schema Schema, requireAuth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		broker:      broker,
		schema:      schema,
		requireAuth: requireAuth,
		logger:      logger,
	}
}

// Register mounts meta endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/meta/bases", h.HandleListBases)
		r.Get("/meta/bases/{baseID}/tables", h.HandleListTables)
	})
}

// HandleListBases handles GET /meta/bases.
func (h *Handler) HandleListBases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var bases []airtable.Base
	err := h.broker.Do(ctx, requestcontext.PrincipalID(ctx), func(ctx context.Context, token string) error {
		var callErr error
		bases, callErr = h.schema.ListBases(ctx, token)
		return callErr
	})
	if err != nil {
		h.writeError(w, r, "list bases failed", err)
		return
	}
	if bases == nil {
		bases = []airtable.Base{}
	}
	httputil.WriteJSON(w, http.StatusOK, bases)
}

// HandleListTables handles GET /meta/bases/{baseID}/tables.
func (h *Handler) HandleListTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	baseID := chi.URLParam(r, "baseID")
	if baseID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "base id is required"))
		return
	}

	var tables []airtable.Table
	err := h.broker.Do(ctx, requestcontext.PrincipalID(ctx), func(ctx context.Context, token string) error {
		var callErr error
		tables, callErr = h.schema.ListTables(ctx, token, baseID)
		return callErr
	})
	if err != nil {
		h.writeError(w, r, "list tables failed", err)
		return
	}
	if tables == nil {
		tables = []airtable.Table{}
	}
	httputil.WriteJSON(w, http.StatusOK, tables)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"principal_id", requestcontext.PrincipalID(ctx),
		"error", err,
	)

	var de *dErrors.Error
	if !errors.As(err, &de) {
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "remote store unavailable")
	}
	httputil.WriteError(w, err)
}
