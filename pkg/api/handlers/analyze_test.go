package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shippingcomps/backend/pkg/analysis"
	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/metrics"
	"github.com/shippingcomps/backend/pkg/models"
	"github.com/shippingcomps/backend/pkg/scrape"
	"github.com/shippingcomps/backend/pkg/store"
)

// metrics register against the global prometheus registry, so the package
// shares one instance across tests
var testMetrics = metrics.New()

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) Run(_ context.Context, url, _ string) (*analysis.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	threshold := 60.0
	return &analysis.Result{
		BusinessProfile:  "profile of " + url,
		AverageThreshold: 45,
		Competitors: []models.CompetitorResult{
			{Name: "Acme", Website: "acme.com", Shipping: models.ShippingProfile{Threshold: &threshold}},
		},
		Recommendations: "lower your threshold",
	}, nil
}

type fakeAnalysisStore struct {
	inserted    int
	completed   []string
	failed      []string
	completeErr error
	records     map[string]*models.AnalysisRecord
}

func (f *fakeAnalysisStore) InsertAnalysis(_ context.Context, _ *string, _, _ string) (string, error) {
	f.inserted++
	return fmt.Sprintf("analysis-%d", f.inserted), nil
}
func (f *fakeAnalysisStore) CompleteAnalysis(_ context.Context, id string, _ *models.AnalysisRecord) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, id)
	return nil
}
func (f *fakeAnalysisStore) FailAnalysis(_ context.Context, id, _ string, _ int64) error {
	f.failed = append(f.failed, id)
	return nil
}
func (f *fakeAnalysisStore) GetAnalysis(_ context.Context, id string) (*models.AnalysisRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}
func (f *fakeAnalysisStore) ListByUser(context.Context, string, int) ([]*models.AnalysisRecord, error) {
	return nil, nil
}

type fakeCache struct {
	data map[string][]byte
}

func (f *fakeCache) GetJSON(_ context.Context, key string, v interface{}) (bool, error) {
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}
func (f *fakeCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

type fakeLedger struct {
	deducted map[string]int
	balance  int
	err      error
}

func (f *fakeLedger) Deduct(_ context.Context, userID string, amount int, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.deducted[userID] += amount
	return nil
}
func (f *fakeLedger) Balance(context.Context, string) (int, error) { return f.balance, nil }

func newAnalyzeFixture() (*AnalyzeHandler, *fakeRunner, *fakeAnalysisStore, *fakeCache, *fakeLedger) {
	runner := &fakeRunner{}
	st := &fakeAnalysisStore{records: map[string]*models.AnalysisRecord{}}
	ch := &fakeCache{data: map[string][]byte{}}
	ledger := &fakeLedger{deducted: map[string]int{}}
	h := NewAnalyzeHandler(runner, st, ch, ledger, testMetrics, logger.Default(), 1)
	return h, runner, st, ch, ledger
}

func postAnalyze(t *testing.T, h *AnalyzeHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Analyze(c))
	return rec
}

func TestAnalyzeMissingURL(t *testing.T) {
	h, runner, st, _, _ := newAnalyzeFixture()

	rec := postAnalyze(t, h, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, runner.calls)
	assert.Zero(t, st.inserted)
}

func TestAnalyzeSuccess(t *testing.T) {
	h, _, st, ch, ledger := newAnalyzeFixture()

	rec := postAnalyze(t, h, `{"url":"example.com","userId":"user-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "analysis-1", resp.AnalysisID)
	assert.Equal(t, 45.0, resp.AverageThreshold)
	assert.Len(t, resp.Competitors, 1)

	assert.Equal(t, []string{"analysis-1"}, st.completed)
	assert.Equal(t, 1, ledger.deducted["user-1"])
	// the completed report is cached under the normalized URL
	assert.Contains(t, ch.data, "analysis:url:https://example.com")
}

func TestAnalyzeAnonymousSkipsLedger(t *testing.T) {
	h, _, _, _, ledger := newAnalyzeFixture()

	rec := postAnalyze(t, h, `{"url":"example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ledger.deducted)
}

func TestAnalyzeInsufficientTokens(t *testing.T) {
	h, runner, st, _, ledger := newAnalyzeFixture()
	ledger.err = store.ErrInsufficientTokens

	rec := postAnalyze(t, h, `{"url":"example.com","userId":"user-1"}`)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Zero(t, runner.calls)
	assert.Zero(t, st.inserted)
}

func TestAnalyzePipelineFailure(t *testing.T) {
	h, runner, st, ch, _ := newAnalyzeFixture()
	runner.err = fmt.Errorf("%w: site returned 403", scrape.ErrAcquisition)

	rec := postAnalyze(t, h, `{"url":"down.example.com"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "analysis_failed", resp.Error)
	assert.Contains(t, resp.Details, "403")
	assert.Equal(t, []string{"analysis-1"}, st.failed)
	assert.Empty(t, st.completed)
	// failed runs are never cached
	assert.Empty(t, ch.data)
}

func TestAnalyzePersistenceFailureStillReturnsReport(t *testing.T) {
	h, _, st, _, _ := newAnalyzeFixture()
	st.completeErr = fmt.Errorf("pq: connection reset")

	rec := postAnalyze(t, h, `{"url":"example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Competitors, 1)
}

func TestAnalyzeReapedBeforeCompletion(t *testing.T) {
	h, _, st, ch, _ := newAnalyzeFixture()
	st.completeErr = models.ErrInvalidTransition

	rec := postAnalyze(t, h, `{"url":"example.com"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "analysis_failed", resp.Error)
	assert.Contains(t, resp.Details, "timed out")
	assert.Empty(t, ch.data)
}

func TestAnalyzeCacheHitSkipsPipeline(t *testing.T) {
	h, runner, st, ch, ledger := newAnalyzeFixture()

	cached, _ := json.Marshal(models.AnalyzeResponse{Success: true, AnalysisID: "cached-1"})
	ch.data["analysis:url:https://example.com"] = cached

	rec := postAnalyze(t, h, `{"url":"example.com","userId":"user-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cached-1", resp.AnalysisID)

	// a cache hit costs nothing: no pipeline run, no row, no token spent
	assert.Zero(t, runner.calls)
	assert.Zero(t, st.inserted)
	assert.Empty(t, ledger.deducted)
}

func TestAnalyzeInvalidMode(t *testing.T) {
	h, runner, _, _, _ := newAnalyzeFixture()

	rec := postAnalyze(t, h, `{"url":"example.com","mode":"turbo"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, runner.calls)
}

func TestGetAnalysisNotFound(t *testing.T) {
	h, _, _, _, _ := newAnalyzeFixture()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, h.GetAnalysis(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAnalysesRequiresUserID(t *testing.T) {
	h, _, _, _, _ := newAnalyzeFixture()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ListAnalyses(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
