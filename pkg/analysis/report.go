package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shippingcomps/backend/pkg/ai/llm"
	"github.com/shippingcomps/backend/pkg/models"
)

// RecommendationsPlaceholder substitutes for the narrative recommendation
// when the final LLM call fails.
const RecommendationsPlaceholder = "Recommendations unavailable at this time. Please review the competitor thresholds above."

// nullThresholdSentinel sorts unknown-threshold competitors after every
// numeric one.
const nullThresholdSentinel = 999

// AverageThreshold computes the arithmetic mean over non-nil thresholds.
// With zero non-nil thresholds it returns 0, never NaN, to keep downstream
// formatting simple.
func AverageThreshold(results []models.CompetitorResult) float64 {
	var sum float64
	var count int
	for _, r := range results {
		if r.Shipping.Threshold != nil {
			sum += *r.Shipping.Threshold
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// SortByThreshold orders competitors ascending by threshold for display,
// with nil thresholds last. The sort is stable so equal thresholds keep
// their discovery order.
func SortByThreshold(results []models.CompetitorResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return sortKey(results[i]) < sortKey(results[j])
	})
}

func sortKey(r models.CompetitorResult) float64 {
	if r.Shipping.Threshold == nil {
		return nullThresholdSentinel
	}
	return *r.Shipping.Threshold
}

// competitorSummary renders the competitor set for the recommendation prompt
func competitorSummary(results []models.CompetitorResult) string {
	var b strings.Builder
	for _, r := range results {
		threshold := "unknown"
		if r.Shipping.Threshold != nil {
			if *r.Shipping.Threshold == 0 {
				threshold = "free on all orders"
			} else {
				threshold = fmt.Sprintf("$%.0f", *r.Shipping.Threshold)
			}
		}
		fmt.Fprintf(&b, "- %s (%s): free shipping threshold %s\n", r.Name, r.Website, threshold)
	}
	return b.String()
}

// generateRecommendations makes the best-effort final LLM call summarizing
// competitive positioning. Failure substitutes the fixed placeholder and
// never fails the overall request.
func (p *Pipeline) generateRecommendations(ctx context.Context, profile string, results []models.CompetitorResult, average float64) string {
	if len(results) == 0 {
		return RecommendationsPlaceholder
	}

	reply, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    llm.RecommenderSystemPrompt,
		Prompt:    llm.RecommendationsPrompt(profile, competitorSummary(results), average),
		MaxTokens: 500,
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		p.logger.Warn("recommendation generation failed", "error", err)
		return RecommendationsPlaceholder
	}
	return strings.TrimSpace(reply)
}
