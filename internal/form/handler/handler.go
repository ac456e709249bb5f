// Package handler wires the form endpoints. Creating, listing, and exporting
// require an authenticated principal; fetching a form and submitting answers
// are public, since respondents are anonymous.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"formbridge/internal/form/models"
	"formbridge/internal/form/visibility"
	id "formbridge/pkg/domain"
	"formbridge/pkg/platform/httputil"
	"formbridge/pkg/requestcontext"
)

// Service defines the form operations the handler exposes.
type Service interface {
	Create(ctx context.Context, creatorID id.PrincipalID, name, baseID, tableID string, questions []models.Question, now time.Time) (*models.Form, error)
	ListByCreator(ctx context.Context, creatorID id.PrincipalID) ([]*models.Form, error)
	Get(ctx context.Context, formID id.FormID) (*models.Form, error)
	Submit(ctx context.Context, formID id.FormID, answers visibility.Answers) error
	ExportResponses(ctx context.Context, formID id.FormID, callerID id.PrincipalID) ([]byte, string, error)
}

// Handler wires form endpoints to the form service.
type Handler struct {
	service     Service
	requireAuth func(http.Handler) http.Handler
	logger      *slog.Logger
}

// New constructs a form handler with its dependencies.
func New(service Service, requireAuth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		requireAuth: requireAuth,
		logger:      logger,
	}
}

// Register mounts form endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/forms", h.HandleCreate)
		r.Get("/forms", h.HandleList)
		r.Get("/forms/{formID}/responses/pdf", h.HandleExport)
	})
	r.Get("/forms/{formID}", h.HandleGet)
	r.Post("/forms/{formID}/submit", h.HandleSubmit)
}

// CreateRequest is the POST /forms payload.
type CreateRequest struct {
	Name      string            `json:"name"`
	BaseID    string            `json:"baseId"`
	TableID   string            `json:"tableId"`
	Questions []models.Question `json:"questions"`
}

// SubmitRequest is the POST /forms/{formID}/submit payload.
type SubmitRequest struct {
	Answers map[string]any `json:"answers"`
}

// HandleCreate handles POST /forms.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[CreateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	f, err := h.service.Create(ctx, requestcontext.PrincipalID(ctx),
		req.Name, req.BaseID, req.TableID, req.Questions, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "create form failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, f)
}

// HandleList handles GET /forms: the caller's own forms, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	forms, err := h.service.ListByCreator(ctx, requestcontext.PrincipalID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "list forms failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if forms == nil {
		forms = []*models.Form{}
	}
	httputil.WriteJSON(w, http.StatusOK, forms)
}

// HandleGet handles GET /forms/{formID}: the public fill-out view.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	f, err := h.service.Get(r.Context(), formID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

// HandleSubmit handles POST /forms/{formID}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.Decode[SubmitRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Submit(ctx, formID, visibility.Answers(req.Answers)); err != nil {
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"form_id", formID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

// HandleExport handles GET /forms/{formID}/responses/pdf.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, filename, err := h.service.ExportResponses(ctx, formID, requestcontext.PrincipalID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "export failed",
			"request_id", requestcontext.RequestID(ctx),
			"form_id", formID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
