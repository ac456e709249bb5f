// Package service implements the form lifecycle: creating and listing form
// schemas, accepting public submissions, and exporting collected responses.
// All provider record traffic runs on the form creator's tokens through the
// token broker.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"formbridge/internal/airtable"
	"formbridge/internal/auth/broker"
	"formbridge/internal/export"
	"formbridge/internal/form/models"
	"formbridge/internal/form/store"
	"formbridge/internal/form/visibility"
	"formbridge/internal/platform/metrics"
	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/sentinel"
)

// Broker executes provider calls with a principal's current access token,
// refreshing when the provider rejects it.
type Broker interface {
	Do(ctx context.Context, principalID id.PrincipalID, call broker.Call) error
}

// Records is the slice of the provider client handling record traffic.
type Records interface {
	CreateRecord(ctx context.Context, token, baseID, tableID string, fields map[string]any) error
	ListRecords(ctx context.Context, token, baseID, tableID string) ([]airtable.Record, error)
}

type Service struct {
	forms   store.Store
	broker  Broker
	records Records
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(forms store.Store, broker Broker, records Records, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		forms:   forms,
		broker:  broker,
		records: records,
		metrics: m,
		log:     log,
	}
}

// Create validates and persists a new form owned by creatorID.
func (s *Service) Create(ctx context.Context, creatorID id.PrincipalID, name, baseID, tableID string, questions []models.Question, now time.Time) (*models.Form, error) {
	f, err := models.NewForm(creatorID, name, baseID, tableID, questions, now)
	if err != nil {
		return nil, err
	}
	if err := s.forms.Create(ctx, f); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist form")
	}

	s.metrics.IncFormsCreated()
	s.log.Info("form created", "form_id", f.ID, "creator_id", creatorID, "questions", len(f.Questions))
	return f, nil
}

// ListByCreator returns the caller's forms, newest first.
func (s *Service) ListByCreator(ctx context.Context, creatorID id.PrincipalID) ([]*models.Form, error) {
	forms, err := s.forms.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list forms")
	}
	return forms, nil
}

// Get loads one form. It backs the public fill-out page, so no ownership
// check applies.
func (s *Service) Get(ctx context.Context, formID id.FormID) (*models.Form, error) {
	f, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "form not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load form")
	}
	return f, nil
}

// Submit validates a public submission against the form's visibility rules
// and forwards the visible answers as one record, written with the creator's
// tokens. Answers to hidden or unknown questions are dropped, never stored.
func (s *Service) Submit(ctx context.Context, formID id.FormID, answers visibility.Answers) error {
	f, err := s.Get(ctx, formID)
	if err != nil {
		return err
	}

	if missing := visibility.MissingRequired(f, answers); len(missing) > 0 {
		s.metrics.IncSubmissionsRejected()
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("missing required answers: %s", strings.Join(missing, ", ")))
	}

	fields := make(map[string]any)
	for _, q := range visibility.Visible(f, answers) {
		if v, ok := answers[q.FieldID]; ok {
			fields[q.FieldID] = v
		}
	}

	err = s.broker.Do(ctx, f.CreatorID, func(ctx context.Context, token string) error {
		return s.records.CreateRecord(ctx, token, f.BaseID, f.TableID, fields)
	})
	if err != nil {
		s.metrics.IncSubmissionsRejected()
		return translateProviderError(err, "store submission")
	}

	s.metrics.IncSubmissionsAccepted()
	s.log.Info("submission accepted", "form_id", formID, "fields", len(fields))
	return nil
}

// ExportResponses fetches every record collected for the form and renders
// them as a PDF. Only the form's creator may export.
func (s *Service) ExportResponses(ctx context.Context, formID id.FormID, callerID id.PrincipalID) ([]byte, string, error) {
	f, err := s.Get(ctx, formID)
	if err != nil {
		return nil, "", err
	}
	if f.CreatorID != callerID {
		return nil, "", dErrors.New(dErrors.CodeForbidden, "only the form's creator can export responses")
	}

	var records []airtable.Record
	err = s.broker.Do(ctx, f.CreatorID, func(ctx context.Context, token string) error {
		var callErr error
		records, callErr = s.records.ListRecords(ctx, token, f.BaseID, f.TableID)
		return callErr
	})
	if err != nil {
		return nil, "", translateProviderError(err, "fetch responses")
	}

	out, err := export.RenderResponses(f, records)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "render responses")
	}
	return out, export.Filename(f), nil
}

// translateProviderError keeps codes already assigned by the broker and maps
// raw transport sentinels onto the upstream code.
func translateProviderError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
