package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-intel/internal/model"
	"github.com/sells-group/sales-intel/internal/otp"
	"github.com/sells-group/sales-intel/internal/session"
	"github.com/sells-group/sales-intel/internal/store"
)

func testEnv(t *testing.T) *engineEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return &engineEnv{
		Store:    st,
		Sessions: session.NewManager(st, 0),
		OTP:      otp.NewStore(0),
	}
}

func TestWidgetAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := widgetAuth("sekret")(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Widget-Auth", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Widget-Auth", "sekret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWidgetAuthOpenWithoutToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := widgetAuth("")(ok)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleTopLeads(t *testing.T) {
	env := testEnv(t)
	require.NoError(t, env.Store.CreateLead(context.Background(), &model.Lead{
		VisitorID: "v1",
		Analysis:  model.NeutralAnalysis(),
		Score:     model.LeadScore{Score: 88, Category: model.CategoryHot, Priority: model.PriorityHigh},
		CreatedAt: time.Now().UTC(),
	}))

	rec := httptest.NewRecorder()
	handleTopLeads(env)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads/top?limit=5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"score":88`)
}

func TestHandleTopLeadsBadLimit(t *testing.T) {
	env := testEnv(t)

	rec := httptest.NewRecorder()
	handleTopLeads(env)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads/top?limit=9000", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLatestLeadNotFound(t *testing.T) {
	env := testEnv(t)

	r := chi.NewRouter()
	r.Get("/api/v1/leads/{visitorID}", handleLatestLead(env))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPHandlers(t *testing.T) {
	env := testEnv(t)

	rec := httptest.NewRecorder()
	handleOTPSend(env)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/otp/send",
		strings.NewReader(`{"visitor_id":"v1","phone":"+15551234567"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	// Wrong code fails.
	rec = httptest.NewRecorder()
	handleOTPVerify(env)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/otp/verify",
		strings.NewReader(`{"visitor_id":"v1","phone":"+15551234567","code":"000000"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verified":false`)
}

func TestHandleCompleteSession(t *testing.T) {
	env := testEnv(t)
	sess := model.NewSession("v1", "", "s1", 1, time.Now().UTC())
	require.NoError(t, env.Store.UpsertSession(context.Background(), sess))

	rec := httptest.NewRecorder()
	handleCompleteSession(env)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/complete",
		strings.NewReader(`{"visitor_id":"v1","session_id":"s1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.Store.GetSession(context.Background(), "v1", "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.Status)

	rec = httptest.NewRecorder()
	handleCompleteSession(env)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/complete",
		strings.NewReader(`{"visitor_id":"ghost","session_id":"s1"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPSendValidation(t *testing.T) {
	env := testEnv(t)

	rec := httptest.NewRecorder()
	handleOTPSend(env)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/otp/send",
		strings.NewReader(`{"visitor_id":"v1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
