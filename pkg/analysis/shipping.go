package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shippingcomps/backend/pkg/models"
)

// PolicyNotSpecified is the display string for sites where no shipping
// policy could be determined. Callers must not render a threshold gauge
// for it.
const PolicyNotSpecified = "Shipping policy not specified"

// maxPlausibleThreshold guards against mis-parsing unrelated dollar figures
// (product prices, order totals) as free-shipping thresholds.
const maxPlausibleThreshold = 500

// amount matches a dollar figure with optional thousands separators and cents
const amount = `(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`

var (
	// blanket free-shipping phrasings; a threshold of 0 means free on all orders
	reBlanket = regexp.MustCompile(`(?i)(free\s+shipping\s+on\s+(?:all|every)\s+orders?|all\s+orders\s+qualify|no\s+minimum)`)
	// an explicit "over/above $N" anywhere disqualifies the blanket reading
	reExplicitMinimum = regexp.MustCompile(`(?i)(?:over|above)\s+\$\d`)

	// threshold grammar, tried in order; the first matching pattern wins and
	// its leftmost match is used
	thresholdPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)free\s+shipping\s+(?:on|for)\s+(?:all\s+)?orders?\s+(?:over|above)\s+\$` + amount),
		regexp.MustCompile(`(?i)orders?\s+(?:over|above)\s+\$` + amount + `[\s\S]*?free\s+shipping`),
		regexp.MustCompile(`(?i)\$` + amount + `\s+(?:or\s+)?(?:more|above)\b[\s\S]*?free\s+shipping`),
		// bare dollar figure as a last resort
		regexp.MustCompile(`\$` + amount),
	}
)

// ParseThreshold extracts a free-shipping threshold from shipping policy
// text. Returns 0 for blanket free shipping, nil when no threshold can be
// determined, and rejects matched figures outside (0, 500].
func ParseThreshold(text string) *float64 {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if reBlanket.MatchString(text) && !reExplicitMinimum.MatchString(text) {
		zero := 0.0
		return &zero
	}

	for _, re := range thresholdPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return nil
		}
		if value <= 0 || value > maxPlausibleThreshold {
			return nil
		}
		return &value
	}

	return nil
}

// ExtractProfile derives a ShippingProfile from policy text and, when the
// structured extraction strategy supplied one, an explicit has-free-shipping
// flag. The flag takes precedence: false short-circuits to a nil threshold,
// true upgrades an undetermined parse to "free on all orders".
func ExtractProfile(policyText string, hasFreeShipping *bool) models.ShippingProfile {
	if hasFreeShipping != nil && !*hasFreeShipping {
		text := strings.TrimSpace(policyText)
		if text == "" {
			text = "No free shipping offered"
		}
		return models.ShippingProfile{Threshold: nil, PolicyText: text}
	}

	threshold := ParseThreshold(policyText)
	if threshold == nil && hasFreeShipping != nil && *hasFreeShipping {
		zero := 0.0
		threshold = &zero
	}

	if threshold == nil {
		return models.ShippingProfile{Threshold: nil, PolicyText: PolicyNotSpecified}
	}

	return models.ShippingProfile{Threshold: threshold, PolicyText: strings.TrimSpace(policyText)}
}
