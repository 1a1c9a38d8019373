package analysis

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shippingcomps/backend/pkg/ai/llm"
	"github.com/shippingcomps/backend/pkg/models"
)

// reJSONArray is the greedy bracket scan used as a compatibility shim when
// the model wraps its JSON in prose or code fences.
var reJSONArray = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseCandidates extracts competitor candidates from an LLM reply and caps
// the result to n deterministically (first n, never a sample). A strict
// unmarshal of the whole reply is tried first; the bracket scan is the
// fallback. Unparseable replies yield an empty slice, never an error.
func ParseCandidates(raw string, n int) []models.CompetitorCandidate {
	raw = strings.TrimSpace(raw)
	if raw == "" || n <= 0 {
		return nil
	}

	var candidates []models.CompetitorCandidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		match := reJSONArray.FindString(raw)
		if match == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(match), &candidates); err != nil {
			return nil
		}
	}

	cleaned := make([]models.CompetitorCandidate, 0, len(candidates))
	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		c.Website = strings.TrimSpace(c.Website)
		if c.Website == "" {
			continue
		}
		if c.Name == "" {
			c.Name = c.Website
		}
		cleaned = append(cleaned, c)
	}

	if len(cleaned) > n {
		cleaned = cleaned[:n]
	}
	return cleaned
}

// ParseURLList extracts a line-delimited URL list reply: lines starting with
// "http" are kept, trimmed and capped to n.
func ParseURLList(raw string, n int) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http") {
			urls = append(urls, line)
		}
		if len(urls) == n {
			break
		}
	}
	return urls
}

// discoverCompetitors asks the LLM for exactly n competitor candidates.
// LLM failures and unparseable replies degrade to an empty candidate set;
// zero competitors is a valid (if degenerate) analysis outcome.
func (p *Pipeline) discoverCompetitors(ctx context.Context, profile string, n int) []models.CompetitorCandidate {
	reply, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    llm.DiscoverySystemPrompt,
		Prompt:    llm.DiscoveryPrompt(profile, n),
		MaxTokens: 800,
	})
	if err != nil {
		p.logger.Warn("competitor discovery failed", "error", err)
		return nil
	}

	candidates := ParseCandidates(reply, n)
	p.logger.Info("competitor discovery done", "requested", n, "found", len(candidates))
	return candidates
}
