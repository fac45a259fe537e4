package commerce

import "strings"

// Keyword score weights. The scorer is an additive bag-of-substrings model:
// a token may score against several fields and several tokens accumulate.
const (
	scoreFullQueryName        = 100
	scoreFullQueryDescription = 40
	scoreTokenName            = 20
	scoreTokenDescription     = 8
	scoreTokenSection         = 15
	scoreTokenCity            = 5
	scoreTokenProvince        = 5
	bonusActiveStories        = 12
	bonusActivePosts          = 6
)

// normalizeText prepares text for comparison: trim + lowercase. Accents are
// kept as-is.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits a normalized query on whitespace, dropping empty tokens.
func tokenize(s string) []string {
	return strings.Fields(s)
}

// contains reports whether the normalized form of field contains needle.
// An empty needle never matches.
func contains(field, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(normalizeText(field), needle)
}

// KeywordScore computes the lexical relevance of a commerce for a query.
// normalizedQuery must already be normalized and tokens derived from it.
// hasStories/hasPosts are the pre-resolved engagement signals for the
// commerce. Higher is more relevant; a commerce with no matches and no
// signals scores 0.
func KeywordScore(c *Commerce, normalizedQuery string, tokens []string, hasStories, hasPosts bool) int {
	score := 0

	name := normalizeText(c.Name)
	description := normalizeText(c.Description)
	section := normalizeText(c.SectionName)
	city := normalizeText(c.City)
	province := normalizeText(c.Province)

	// Whole-query substring is the strongest signal.
	if normalizedQuery != "" {
		if strings.Contains(name, normalizedQuery) {
			score += scoreFullQueryName
		}
		if strings.Contains(description, normalizedQuery) {
			score += scoreFullQueryDescription
		}
	}

	for _, token := range tokens {
		if strings.Contains(name, token) {
			score += scoreTokenName
		}
		if strings.Contains(description, token) {
			score += scoreTokenDescription
		}
		if strings.Contains(section, token) {
			score += scoreTokenSection
		}
		if strings.Contains(city, token) {
			score += scoreTokenCity
		}
		if strings.Contains(province, token) {
			score += scoreTokenProvince
		}
	}

	if hasStories {
		score += bonusActiveStories
	}
	if hasPosts {
		score += bonusActivePosts
	}

	return score
}
