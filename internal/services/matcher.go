package services

import (
	"strings"

	"frontdesk/internal/models"
)

// NormalizeQuestion is the canonical form used for matching and as the key of
// learned answers.
func NormalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// SplitPatterns returns the non-empty alternatives of a stored pattern, trimmed
// and lowercased.
func SplitPatterns(pattern string) []string {
	parts := strings.Split(pattern, models.PatternSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = NormalizeQuestion(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizePattern rewrites a stored pattern in canonical form: alternatives
// trimmed, lowercased and rejoined, empty ones dropped.
func NormalizePattern(pattern string) string {
	return strings.Join(SplitPatterns(pattern), models.PatternSeparator)
}

// MatchAnswer returns the answer of the first entry with an alternative that is
// a substring of the normalized query. Entries are tried in the given order.
// An empty query never matches.
func MatchAnswer(entries []models.KnowledgeEntry, query string) (string, bool) {
	q := NormalizeQuestion(query)
	if q == "" {
		return "", false
	}

	for _, e := range entries {
		for _, p := range SplitPatterns(e.QuestionPattern) {
			if strings.Contains(q, p) {
				return e.Answer, true
			}
		}
	}
	return "", false
}
