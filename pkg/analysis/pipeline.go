package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shippingcomps/backend/pkg/ai/llm"
	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/models"
	"github.com/shippingcomps/backend/pkg/scrape"
)

// Config tunes the pipeline per deployment
type Config struct {
	CompetitorCount     int           // default pipeline variant, default 6
	CompetitorCountFast int           // "fast" mode, default 5
	CompetitorCountFull int           // "comprehensive" mode, default 10
	ExtractTimeout      time.Duration // per-competitor budget, default 20s
	LLMTimeout          time.Duration // per-completion budget, default 30s
}

func (c Config) withDefaults() Config {
	if c.CompetitorCount <= 0 {
		c.CompetitorCount = 6
	}
	if c.CompetitorCountFast <= 0 {
		c.CompetitorCountFast = 5
	}
	if c.CompetitorCountFull <= 0 {
		c.CompetitorCountFull = 10
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 20 * time.Second
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 30 * time.Second
	}
	return c
}

// Result is the aggregate produced by one pipeline run
type Result struct {
	BusinessProfile  string
	BusinessSummary  string
	Competitors      []models.CompetitorResult
	UserShipping     *models.UserShipping
	AverageThreshold float64
	Recommendations  string
}

// Runner is the pipeline contract consumed by HTTP handlers and the
// subscription runner.
type Runner interface {
	Run(ctx context.Context, url, mode string) (*Result, error)
}

// Pipeline orchestrates the four analysis stages: content acquisition,
// business profiling, competitor discovery and per-competitor shipping
// extraction, followed by report aggregation.
type Pipeline struct {
	fetcher scrape.Fetcher
	llm     llm.Client
	cfg     Config
	logger  logger.Logger
}

var _ Runner = (*Pipeline)(nil)

// NewPipeline constructs the analysis pipeline with injected collaborators
func NewPipeline(fetcher scrape.Fetcher, llmClient llm.Client, cfg Config, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		llm:     llmClient,
		cfg:     cfg.withDefaults(),
		logger:  log,
	}
}

func (p *Pipeline) competitorCount(mode string) int {
	switch mode {
	case "fast":
		return p.cfg.CompetitorCountFast
	case "comprehensive":
		return p.cfg.CompetitorCountFull
	default:
		return p.cfg.CompetitorCount
	}
}

// Run executes the full pipeline for one target URL. Only a hard failure
// acquiring the primary site's content aborts the run; every later stage
// degrades to a partial result instead of failing.
func (p *Pipeline) Run(ctx context.Context, rawURL, mode string) (*Result, error) {
	url := scrape.NormalizeURL(rawURL)
	p.logger.Info("starting analysis", "url", url, "mode", mode)

	// Stage 1: primary content acquisition. A hard failure here
	// short-circuits the pipeline before any discovery or extraction calls.
	actx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	content, err := p.fetcher.Fetch(actx, url)
	cancel()
	if err != nil {
		return nil, err
	}
	if content.Empty() {
		return nil, fmt.Errorf("%w: no usable content for %s", scrape.ErrAcquisition, url)
	}

	// Stage 2: business profiling, degrades to a placeholder profile
	lctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	profile := p.profileBusiness(lctx, content)
	cancel()

	// The submitted site's own shipping offer, from already-acquired content
	userShipping := p.shippingFromContent(ctx, url, content)

	// Stage 3: competitor discovery
	lctx, cancel = context.WithTimeout(ctx, p.cfg.LLMTimeout)
	candidates := p.discoverCompetitors(lctx, profile, p.competitorCount(mode))
	cancel()

	// Stage 4: settle-all shipping extraction, order-preserving
	competitors := p.extractAll(ctx, candidates)

	// Stage 5: aggregation
	average := AverageThreshold(competitors)
	SortByThreshold(competitors)

	lctx, cancel = context.WithTimeout(ctx, p.cfg.LLMTimeout)
	recommendations := p.generateRecommendations(lctx, profile, competitors, average)
	cancel()

	p.logger.Info("analysis complete",
		"url", url,
		"competitors", len(competitors),
		"average_threshold", average)

	return &Result{
		BusinessProfile:  profile,
		BusinessSummary:  SummarizeProfile(profile),
		Competitors:      competitors,
		UserShipping:     userShipping,
		AverageThreshold: average,
		Recommendations:  recommendations,
	}, nil
}

// extractAll fans out all candidates concurrently and joins with settle-all
// semantics: one candidate's failure never rejects the batch, and results
// keep positional correspondence with the candidate order. Every candidate
// yields a profile, so len(out) == len(candidates) always holds.
func (p *Pipeline) extractAll(ctx context.Context, candidates []models.CompetitorCandidate) []models.CompetitorResult {
	results := make([]models.CompetitorResult, len(candidates))

	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand models.CompetitorCandidate) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
			defer cancel()

			results[i] = models.CompetitorResult{
				Name:     cand.Name,
				Website:  cand.Website,
				Products: cand.Products,
				Shipping: p.extractShipping(cctx, cand.Website),
			}
		}(i, cand)
	}
	wg.Wait()

	return results
}

// extractShipping acquires one site's content and derives its shipping
// profile. Failures produce a null-threshold profile with a failure note
// instead of an error, so the caller's settle-all join stays total.
func (p *Pipeline) extractShipping(ctx context.Context, website string) models.ShippingProfile {
	content, err := p.fetcher.Fetch(ctx, website)
	if err != nil {
		return models.ShippingProfile{
			PolicyText:  PolicyNotSpecified,
			FailureNote: err.Error(),
		}
	}
	if content.Empty() {
		return models.ShippingProfile{
			PolicyText:  PolicyNotSpecified,
			FailureNote: "no usable content",
		}
	}

	return p.profileFromContent(ctx, website, content)
}

// profileFromContent derives a ShippingProfile from acquired content.
// Structured extractions are parsed directly; raw text goes through an LLM
// summarization pass first, falling back to scanning the raw text when the
// summarization fails.
func (p *Pipeline) profileFromContent(ctx context.Context, website string, content *scrape.Content) models.ShippingProfile {
	if content.Structured != nil && !content.Structured.Empty() {
		sp := ExtractProfile(content.Structured.ShippingIncentives, content.Structured.HasFreeShipping)
		sp.DeliveryTimeframe = content.Structured.DeliveryTimeframe
		sp.Promotions = content.Structured.Promotions
		return sp
	}

	summary, err := p.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:    llm.ShippingExtractionPrompt(website, content.Text),
		MaxTokens: 300,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		return ExtractProfile(content.Text, nil)
	}
	return ExtractProfile(summary, nil)
}

// shippingFromContent builds the submitted site's own shipping summary
func (p *Pipeline) shippingFromContent(ctx context.Context, url string, content *scrape.Content) *models.UserShipping {
	lctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	sp := p.profileFromContent(lctx, url, content)
	return &models.UserShipping{
		Threshold: sp.Threshold,
		Analysis:  sp.PolicyText,
	}
}
