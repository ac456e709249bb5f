package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge/internal/form/models"
	"formbridge/internal/form/visibility"
	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/requestcontext"
)

type fakeService struct {
	created      *models.Form
	createErr    error
	gotName      string
	gotQuestions []models.Question
	forms        []*models.Form
	form         *models.Form
	getErr       error
	submitErr    error
	gotAnswers   visibility.Answers
	exportBytes  []byte
	exportName   string
	exportErr    error
	exportCaller id.PrincipalID
}

func (f *fakeService) Create(ctx context.Context, creatorID id.PrincipalID, name, baseID, tableID string, questions []models.Question, now time.Time) (*models.Form, error) {
	f.gotName = name
	f.gotQuestions = questions
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeService) ListByCreator(ctx context.Context, creatorID id.PrincipalID) ([]*models.Form, error) {
	return f.forms, nil
}

func (f *fakeService) Get(ctx context.Context, formID id.FormID) (*models.Form, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.form, nil
}

func (f *fakeService) Submit(ctx context.Context, formID id.FormID, answers visibility.Answers) error {
	f.gotAnswers = answers
	return f.submitErr
}

func (f *fakeService) ExportResponses(ctx context.Context, formID id.FormID, callerID id.PrincipalID) ([]byte, string, error) {
	f.exportCaller = callerID
	if f.exportErr != nil {
		return nil, "", f.exportErr
	}
	return f.exportBytes, f.exportName, nil
}

func authAs(principalID id.PrincipalID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithPrincipalID(r.Context(), principalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(svc Service, principalID id.PrincipalID) *chi.Mux {
	h := New(svc, authAs(principalID), slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func sampleForm(t *testing.T, creator id.PrincipalID) *models.Form {
	t.Helper()
	f, err := models.NewForm(creator, "Survey", "app1", "tbl1", []models.Question{
		{FieldID: "fldName", Label: "Name", Type: models.FieldSingleLineText, Required: true},
	}, time.Now().UTC())
	require.NoError(t, err)
	return f
}

func TestHandleCreate(t *testing.T) {
	caller := id.PrincipalID(uuid.New())
	svc := &fakeService{created: sampleForm(t, caller)}
	r := newRouter(svc, caller)

	body := `{"name":"Survey","baseId":"app1","tableId":"tbl1","questions":[{"fieldId":"fldName","label":"Name","type":"singleLineText","required":true,"conditional":{"enabled":false}}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Survey", svc.gotName)
	require.Len(t, svc.gotQuestions, 1)
	assert.Equal(t, models.FieldSingleLineText, svc.gotQuestions[0].Type)
}

func TestHandleCreateBadBody(t *testing.T) {
	r := newRouter(&fakeService{}, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateValidationError(t *testing.T) {
	svc := &fakeService{createErr: dErrors.New(dErrors.CodeValidation, "form must have at least one question")}
	r := newRouter(svc, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms",
		strings.NewReader(`{"name":"Survey","baseId":"app1","tableId":"tbl1","questions":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body["error"])
}

func TestHandleList(t *testing.T) {
	caller := id.PrincipalID(uuid.New())
	svc := &fakeService{forms: []*models.Form{sampleForm(t, caller)}}
	r := newRouter(svc, caller)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var forms []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forms))
	assert.Len(t, forms, 1)
}

func TestHandleListEmptyIsArray(t *testing.T) {
	r := newRouter(&fakeService{}, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleGet(t *testing.T) {
	caller := id.PrincipalID(uuid.New())
	form := sampleForm(t, caller)
	r := newRouter(&fakeService{form: form}, caller)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/"+form.ID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Form
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Survey", got.Name)
}

func TestHandleGetNotFound(t *testing.T) {
	svc := &fakeService{getErr: dErrors.New(dErrors.CodeNotFound, "form not found")}
	r := newRouter(svc, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetBadID(t *testing.T) {
	r := newRouter(&fakeService{}, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, id.PrincipalID(uuid.New()))

	body := `{"answers":{"fldName":"Ada"}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms/"+uuid.NewString()+"/submit", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, visibility.Answers{"fldName": "Ada"}, svc.gotAnswers)
}

func TestHandleSubmitValidationFailure(t *testing.T) {
	svc := &fakeService{submitErr: dErrors.New(dErrors.CodeValidation, "missing required answers: fldName")}
	r := newRouter(svc, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms/"+uuid.NewString()+"/submit",
		strings.NewReader(`{"answers":{}}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "fldName")
}

func TestHandleSubmitUpstreamDown(t *testing.T) {
	svc := &fakeService{submitErr: dErrors.New(dErrors.CodeUnavailable, "store submission")}
	r := newRouter(svc, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms/"+uuid.NewString()+"/submit",
		strings.NewReader(`{"answers":{"fldName":"Ada"}}`)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleExport(t *testing.T) {
	caller := id.PrincipalID(uuid.New())
	svc := &fakeService{exportBytes: []byte("%PDF-1.4 fake"), exportName: "Survey-responses.pdf"}
	r := newRouter(svc, caller)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/"+uuid.NewString()+"/responses/pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Survey-responses.pdf")
	assert.Equal(t, caller, svc.exportCaller)
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())
}

func TestHandleExportForbidden(t *testing.T) {
	svc := &fakeService{exportErr: dErrors.New(dErrors.CodeForbidden, "only the form's creator can export responses")}
	r := newRouter(svc, id.PrincipalID(uuid.New()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/"+uuid.NewString()+"/responses/pdf", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
