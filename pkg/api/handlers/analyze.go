package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/shippingcomps/backend/pkg/analysis"
	apierrors "github.com/shippingcomps/backend/pkg/api/errors"
	"github.com/shippingcomps/backend/pkg/cache"
	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/metrics"
	"github.com/shippingcomps/backend/pkg/models"
	"github.com/shippingcomps/backend/pkg/scrape"
	"github.com/shippingcomps/backend/pkg/store"
)

// AnalysisStore is the persistence surface the analyze handler needs
type AnalysisStore interface {
	InsertAnalysis(ctx context.Context, userID *string, url, mode string) (string, error)
	CompleteAnalysis(ctx context.Context, id string, record *models.AnalysisRecord) error
	FailAnalysis(ctx context.Context, id, errMsg string, elapsedMs int64) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error)
}

// AnalysisCache caches completed analyses per normalized URL
type AnalysisCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, expiration time.Duration) error
}

// TokenLedger deducts tokens for paid analyses
type TokenLedger interface {
	Deduct(ctx context.Context, userID string, amount int, reason string) error
	Balance(ctx context.Context, userID string) (int, error)
}

// AnalyzeHandler runs the analysis pipeline for submitted URLs
type AnalyzeHandler struct {
	pipeline  analysis.Runner
	store     AnalysisStore
	cache     AnalysisCache
	tokens    TokenLedger
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    logger.Logger
	tokenCost int
	cacheTTL  time.Duration
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(pipeline analysis.Runner, st AnalysisStore, c AnalysisCache, tokens TokenLedger, m *metrics.Metrics, log logger.Logger, tokenCost int) *AnalyzeHandler {
	if log == nil {
		log = logger.Default()
	}
	if tokenCost <= 0 {
		tokenCost = 1
	}
	return &AnalyzeHandler{
		pipeline:  pipeline,
		store:     st,
		cache:     c,
		tokens:    tokens,
		metrics:   m,
		validate:  validator.New(),
		logger:    log,
		tokenCost: tokenCost,
		cacheTTL:  cache.DefaultAnalysisTTL,
	}
}

// Analyze handles POST /api/v1/analyze. It runs the full pipeline
// synchronously and returns the finished report.
func (h *AnalyzeHandler) Analyze(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	var req models.AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	url := scrape.NormalizeURL(req.URL)

	// same URL analyzed within the TTL: serve the cached report
	if h.cache != nil {
		var cached models.AnalyzeResponse
		hit, err := h.cache.GetJSON(ctx, cache.AnalysisKey(url), &cached)
		if err != nil {
			h.logger.Warn("cache lookup failed", "url", url, "error", err)
		}
		if hit {
			h.metrics.CacheHits.Inc()
			cached.AnalysisTimeMs = time.Since(start).Milliseconds()
			return c.JSON(http.StatusOK, cached)
		}
		h.metrics.CacheMisses.Inc()
	}

	// identified users pay per analysis; anonymous trials do not touch the ledger
	var userID *string
	if req.UserID != "" {
		if err := h.tokens.Deduct(ctx, req.UserID, h.tokenCost, "analysis"); err != nil {
			if errors.Is(err, store.ErrInsufficientTokens) {
				return apierrors.PaymentRequiredError(c)
			}
			return apierrors.DatabaseError(c, err)
		}
		h.metrics.TokensDeducted.Add(float64(h.tokenCost))
		userID = &req.UserID
	}

	id, err := h.store.InsertAnalysis(ctx, userID, url, req.Mode)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	h.metrics.AnalysesStarted.Inc()

	result, err := h.pipeline.Run(ctx, url, req.Mode)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		h.metrics.AnalysesFailed.Inc()
		if failErr := h.store.FailAnalysis(ctx, id, err.Error(), elapsed); failErr != nil {
			h.logger.Warn("could not mark analysis failed", "analysis", id, "error", failErr)
		}
		return apierrors.AnalysisError(c, err.Error(), elapsed)
	}

	record := &models.AnalysisRecord{
		ID:               id,
		UserID:           userID,
		URL:              url,
		Mode:             req.Mode,
		Status:           models.StatusCompleted,
		BusinessProfile:  result.BusinessProfile,
		BusinessSummary:  result.BusinessSummary,
		Competitors:      result.Competitors,
		UserShipping:     result.UserShipping,
		AverageThreshold: result.AverageThreshold,
		Recommendations:  result.Recommendations,
		AnalysisTimeMs:   elapsed,
	}
	if err := h.store.CompleteAnalysis(ctx, id, record); err != nil {
		// the reaper already marked this run failed; its verdict stands
		if errors.Is(err, models.ErrInvalidTransition) {
			h.logger.Warn("analysis finished after being reaped", "analysis", id)
			return apierrors.AnalysisError(c, "analysis timed out", elapsed)
		}
		// the report exists in memory; a failed save is not worth a 500
		h.logger.Error("could not persist completed analysis", "analysis", id, "error", err)
	}
	h.metrics.AnalysesCompleted.Inc()
	h.metrics.CompetitorsPerRun.Observe(float64(len(result.Competitors)))

	response := models.AnalyzeResponse{
		Success:          true,
		BusinessAnalysis: result.BusinessProfile,
		BusinessSummary:  result.BusinessSummary,
		Competitors:      result.Competitors,
		UserShipping:     result.UserShipping,
		AverageThreshold: result.AverageThreshold,
		Recommendations:  result.Recommendations,
		AnalysisTimeMs:   elapsed,
		AnalysisID:       id,
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, cache.AnalysisKey(url), response, h.cacheTTL); err != nil {
			h.logger.Warn("caching analysis failed", "url", url, "error", err)
		}
	}

	return c.JSON(http.StatusOK, response)
}

// GetAnalysis handles GET /api/v1/analyses/:id
func (h *AnalyzeHandler) GetAnalysis(c echo.Context) error {
	ctx := c.Request().Context()

	rec, err := h.store.GetAnalysis(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.NotFoundError(c, "analysis")
		}
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListAnalyses handles GET /api/v1/analyses?userId=...
func (h *AnalyzeHandler) ListAnalyses(c echo.Context) error {
	ctx := c.Request().Context()

	userID := c.QueryParam("userId")
	if userID == "" {
		return apierrors.ValidationError(c, errors.New("userId query parameter is required"))
	}

	records, err := h.store.ListByUser(ctx, userID, 50)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	if records == nil {
		records = []*models.AnalysisRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"analyses": records,
		"total":    len(records),
	})
}
