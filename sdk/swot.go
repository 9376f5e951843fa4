package sdk

import (
	"strings"
)

const (
	STRENGTH    = "Strength"
	WEAKNESS    = "Weakness"
	OPPORTUNITY = "Opportunity"
	THREAT      = "Threat"
)

// SwotCategories is the fixed category order. Ties in Classify go to the
// earlier entry and distributions are reported in this order.
var SwotCategories = []string{STRENGTH, WEAKNESS, OPPORTUNITY, THREAT}

// the one keyword table used by both the swot filter and the swot distribution
var _SWOT_KEYWORDS = map[string][]string{
	STRENGTH:    {"growth", "increase", "expansion", "success", "positive", "strong", "leading", "dominant"},
	WEAKNESS:    {"decline", "decrease", "challenge", "difficulty", "struggle", "weak", "failing", "loss"},
	OPPORTUNITY: {"potential", "opportunity", "emerging", "new", "future", "prospect", "chance", "possibility"},
	THREAT:      {"threat", "risk", "danger", "crisis", "problem", "issue", "concern", "warning"},
}

// SwotCategory resolves a user supplied category name case-insensitively.
func SwotCategory(name string) (string, bool) {
	for _, category := range SwotCategories {
		if strings.EqualFold(category, strings.TrimSpace(name)) {
			return category, true
		}
	}
	return "", false
}

// Keywords returns the keyword list of a canonical category name.
func Keywords(category string) []string {
	return _SWOT_KEYWORDS[category]
}

// Classify buckets a record into one SWOT category. The category with the
// most keyword hits in title+insight wins. Without any hit the intensity and
// likelihood thresholds decide.
func Classify(title, insight string, intensity, likelihood *float64) string {
	text := strings.ToLower(title + " " + insight)

	best, best_score := STRENGTH, 0
	for _, category := range SwotCategories {
		score := 0
		for _, keyword := range _SWOT_KEYWORDS[category] {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > best_score {
			best, best_score = category, score
		}
	}
	if best_score > 0 {
		return best
	}

	i, l := valueOrZero(intensity), valueOrZero(likelihood)
	switch {
	case i > 7 && l > 3:
		return STRENGTH
	case i < 4 && l < 2:
		return WEAKNESS
	case i > 6 && l < 3:
		return OPPORTUNITY
	default:
		return THREAT
	}
}

// ClassifyRecord is Classify over a record's own fields.
func ClassifyRecord(r *Record) string {
	return Classify(r.Title, r.Insight, r.Intensity, r.Likelihood)
}

// MatchesSwot reports whether the record's title or insight contains any
// keyword of the category. This is the in-process twin of the swot filter.
func MatchesSwot(r *Record, category string) bool {
	title, insight := strings.ToLower(r.Title), strings.ToLower(r.Insight)
	for _, keyword := range _SWOT_KEYWORDS[category] {
		if strings.Contains(title, keyword) || strings.Contains(insight, keyword) {
			return true
		}
	}
	return false
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
