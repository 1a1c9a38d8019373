package llm

import "fmt"

// System prompts for the analysis pipeline stages

const (
	// ProfilerSystemPrompt is used for the business profiling stage
	ProfilerSystemPrompt = `You are an expert e-commerce business analyst.

Your role is to:
- Read raw website content and identify what the business sells and to whom
- Summarize positioning, product focus and price range
- Be factual; do not invent details the content does not support

Output Format:
- Use the exact section headers requested in the prompt, bolded
- Keep each section to 1-3 sentences`

	// DiscoverySystemPrompt is used for the competitor discovery stage
	DiscoverySystemPrompt = `You are a competitive intelligence researcher for e-commerce.

Your role is to:
- Given a business profile, propose real, currently operating competitors
- Prefer direct competitors selling similar products to a similar market
- Only list businesses with a public website

Output Format:
- Respond with ONLY a JSON array, no prose before or after`

	// RecommenderSystemPrompt is used for the final narrative recommendation call
	RecommenderSystemPrompt = `You are a shipping strategy consultant for online merchants.

Your role is to:
- Compare a merchant's shipping offer against competitor free-shipping thresholds
- Recommend a concrete free-shipping threshold and delivery promise
- Keep recommendations short, numeric and actionable

Output Format:
- 3-5 bullet points
- Include specific dollar amounts`
)

// profileContentBudget bounds how much scraped content goes into the
// profiling prompt.
const profileContentBudget = 3000

// discoveryProfileBudget bounds how much of the business profile goes into
// the discovery prompt.
const discoveryProfileBudget = 1500

// ProfilePrompt builds the business profiling prompt from acquired content
func ProfilePrompt(content string) string {
	if len(content) > profileContentBudget {
		content = content[:profileContentBudget]
	}

	return fmt.Sprintf(`Analyze the following website content and describe the business.

Respond with these sections, each header bolded like **Industry**:
**Industry**
**Product Focus**
**Target Market**
**Key Differentiators**
**Price Range**

Website content:
%s`, content)
}

// DiscoveryPrompt builds the competitor discovery prompt. It asks for exactly
// n candidates as a JSON array of {name, website, products} objects.
func DiscoveryPrompt(profile string, n int) string {
	if len(profile) > discoveryProfileBudget {
		profile = profile[:discoveryProfileBudget]
	}

	return fmt.Sprintf(`Based on this business profile, identify exactly %d direct competitors.

Business profile:
%s

Respond with ONLY a JSON array of exactly %d objects in this form:
[{"name": "Competitor Name", "website": "competitor.com", "products": "short product description"}]`, n, profile, n)
}

// ShippingExtractionPrompt asks for the shipping policy summary of one site
func ShippingExtractionPrompt(website, content string) string {
	if len(content) > profileContentBudget {
		content = content[:profileContentBudget]
	}

	return fmt.Sprintf(`Summarize the shipping policy of %s from the content below.

Mention the free shipping threshold as a dollar amount if one exists
(for example "free shipping on orders over $75"), say "free shipping on all
orders" if shipping is always free, and include delivery timeframes and any
shipping promotions. If the content says nothing about shipping, reply
"Shipping policy not specified".

Content:
%s`, website, content)
}

// RecommendationsPrompt builds the final narrative recommendation prompt
func RecommendationsPrompt(profile, competitorSummary string, averageThreshold float64) string {
	if len(profile) > discoveryProfileBudget {
		profile = profile[:discoveryProfileBudget]
	}

	return fmt.Sprintf(`A merchant with this profile:
%s

faces these competitors (free shipping thresholds included):
%s

The average competitor free-shipping threshold is $%.2f.

Recommend how the merchant should position their shipping offer.`, profile, competitorSummary, averageThreshold)
}
