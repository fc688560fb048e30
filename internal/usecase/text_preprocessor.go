package usecase

import (
	"regexp"
	"sort"
	"strings"
)

// Compiled regex patterns for text preprocessing
var (
	// Anything that is not a letter or digit in any script
	nonAlphanumericPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// normalizeForMatching lowercases s, turns every run of non-alphanumeric
// characters into a single space and trims the result. Block text and
// dictionary entries both go through it before fuzzy comparison.
func normalizeForMatching(s string) string {
	cleaned := nonAlphanumericPattern.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(cleaned)
}

// tokenSet splits normalized text into its distinct tokens
func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(normalized) {
		set[token] = true
	}
	return set
}

// sortedJoin joins the keys of a token set in lexical order
func sortedJoin(tokens map[string]bool) string {
	list := make([]string, 0, len(tokens))
	for t := range tokens {
		list = append(list, t)
	}
	sort.Strings(list)
	return strings.Join(list, " ")
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase and collapses whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = multiSpacePattern.ReplaceAllString(result, "_")
	return strings.TrimSpace(result)
}
