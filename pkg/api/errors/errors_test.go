package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shippingcomps/backend/pkg/models"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func captureLog(fn func()) string {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestValidationError(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/analyze")
	require.NoError(t, ValidationError(c, errors.New("field 'url' is required")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := parseBody(t, rec)
	assert.Equal(t, "validation_error", resp.Error)
	assert.NotEmpty(t, resp.Details)
}

func TestDatabaseErrorHidesInternalDetail(t *testing.T) {
	internalMsg := "pq: duplicate key value violates unique constraint"
	c, rec := newContext(http.MethodGet, "/api/v1/analyses")

	logged := captureLog(func() {
		_ = DatabaseError(c, errors.New(internalMsg))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.Contains(t, logged, internalMsg)
	assert.Contains(t, logged, "/api/v1/analyses")
}

func TestPaymentRequiredError(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/analyze")
	require.NoError(t, PaymentRequiredError(c))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient_tokens", parseBody(t, rec).Error)
}

func TestAnalysisErrorIncludesElapsedTime(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/analyze")
	require.NoError(t, AnalysisError(c, "content acquisition failed", 4321))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := parseBody(t, rec)
	assert.Equal(t, "analysis_failed", resp.Error)
	assert.Equal(t, int64(4321), resp.AnalysisTimeMs)
}

func TestNotFoundError(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/v1/analyses/missing")
	require.NoError(t, NotFoundError(c, "analysis"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", parseBody(t, rec).Error)
}
