package analysis

import (
	"context"
	"regexp"
	"strings"

	"github.com/shippingcomps/backend/pkg/ai/llm"
	"github.com/shippingcomps/backend/pkg/scrape"
)

// PlaceholderProfile is returned when the profiling call fails. It keeps the
// pipeline moving with reduced fidelity instead of aborting.
const PlaceholderProfile = "Business profile unavailable."

// reBoldHeader matches the bolded section headers the profiling prompt asks for
var reBoldHeader = regexp.MustCompile(`\*\*(Industry|Product Focus|Target Market|Key Differentiators|Price Range)\*\*`)

// profileBusiness turns acquired content into a narrative business profile
// with recognizable section headers. Never returns an error: on LLM failure
// the placeholder profile is returned so discovery can still run.
func (p *Pipeline) profileBusiness(ctx context.Context, content *scrape.Content) string {
	reply, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    llm.ProfilerSystemPrompt,
		Prompt:    llm.ProfilePrompt(content.Text),
		MaxTokens: 600,
	})
	if err != nil {
		p.logger.Warn("business profiling failed", "error", err)
		return PlaceholderProfile
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return PlaceholderProfile
	}
	return reply
}

// SummarizeProfile pulls the first sentence of the Industry section out of a
// profile for compact display. Falls back to the first line of the profile.
func SummarizeProfile(profile string) string {
	idx := reBoldHeader.FindStringIndex(profile)
	if idx != nil {
		rest := profile[idx[1]:]
		if end := strings.IndexAny(rest, "\n*"); end > 0 {
			rest = rest[:end]
		}
		if s := strings.TrimSpace(strings.TrimPrefix(rest, ":")); s != "" {
			return s
		}
	}

	for _, line := range strings.Split(profile, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
