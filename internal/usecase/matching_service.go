package usecase

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/promolens/backend/internal/domain"
)

const (
	defaultMinConfidence  = 80 // blocks matching worse than this are dropped
	defaultMinExactLength = 6  // shorter verbatim hits are too ambiguous to trust
	exactMatchConfidence  = 100
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinConfidenceThreshold int
	MinExactLength         int
	EnableDebugLogging     bool
}

// MatchingService finds the product a block of flyer text advertises by
// comparing it against a product name dictionary.
type MatchingService struct {
	dictionary         []string
	normalized         []string
	minConfidence      int
	minExactLength     int
	enableDebugLogging bool
	logger             logrus.FieldLogger
}

// NewMatchingService creates a new matching service over the given
// dictionary. Dictionary order breaks ties between equally good candidates.
func NewMatchingService(dictionary []string, config MatchConfig, logger logrus.FieldLogger) *MatchingService {
	threshold := config.MinConfidenceThreshold
	if threshold <= 0 {
		threshold = defaultMinConfidence
	}

	exactLength := config.MinExactLength
	if exactLength <= 0 {
		exactLength = defaultMinExactLength
	}

	entries := make([]string, 0, len(dictionary))
	normalized := make([]string, 0, len(dictionary))
	for _, entry := range dictionary {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		entries = append(entries, entry)
		normalized = append(normalized, normalizeForMatching(entry))
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &MatchingService{
		dictionary:         entries,
		normalized:         normalized,
		minConfidence:      threshold,
		minExactLength:     exactLength,
		enableDebugLogging: config.EnableDebugLogging,
		logger:             logger.WithField("component", "matcher"),
	}
}

// Size returns the number of dictionary entries
func (s *MatchingService) Size() int {
	return len(s.dictionary)
}

// FindProductName picks the product name for a block of text. The longest
// dictionary entry appearing verbatim in the text wins with full confidence
// when it is long enough and not already part of the best fuzzy candidate;
// otherwise the best fuzzy candidate is returned with its token set score.
// A result below the confidence threshold is returned together with
// ErrLowConfidence.
func (s *MatchingService) FindProductName(ctx context.Context, text string) (*domain.MatchResult, error) {
	if len(s.dictionary) == 0 {
		return nil, domain.ErrNoProductMatch
	}

	normalizedText := normalizeForMatching(text)

	exact := ""
	fuzzy, fuzzyScore := "", -1
	for i, entry := range s.dictionary {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if strings.Contains(text, entry) && utf8.RuneCountInString(entry) > utf8.RuneCountInString(exact) {
			exact = entry
		}

		if score := tokenSetRatioNormalized(normalizedText, s.normalized[i]); score > fuzzyScore {
			fuzzy, fuzzyScore = entry, score
		}
	}

	result := &domain.MatchResult{Name: fuzzy, Confidence: fuzzyScore}
	if exact != "" && utf8.RuneCountInString(exact) >= s.minExactLength && !strings.Contains(fuzzy, exact) {
		result = &domain.MatchResult{Name: exact, Confidence: exactMatchConfidence, Exact: true}
	}

	if s.enableDebugLogging {
		s.logger.WithFields(logrus.Fields{
			"exact":       exact,
			"fuzzy":       fuzzy,
			"fuzzy_score": fuzzyScore,
			"chosen":      result.Name,
		}).Debug("product name candidates")
	}

	if result.Confidence < s.minConfidence {
		return result, domain.ErrLowConfidence
	}

	return result, nil
}

// TokenSetRatio scores the similarity of two strings from 0 to 100 by
// comparing their shared and distinct token sets, so word order and extra
// words in either string matter little.
func TokenSetRatio(a, b string) int {
	return tokenSetRatioNormalized(normalizeForMatching(a), normalizeForMatching(b))
}

func tokenSetRatioNormalized(a, b string) int {
	if a == "" || b == "" {
		return 0
	}

	tokensA, tokensB := tokenSet(a), tokenSet(b)
	intersection := make(map[string]bool)
	onlyA := make(map[string]bool)
	onlyB := make(map[string]bool)
	for t := range tokensA {
		if tokensB[t] {
			intersection[t] = true
		} else {
			onlyA[t] = true
		}
	}
	for t := range tokensB {
		if !tokensA[t] {
			onlyB[t] = true
		}
	}

	sect := sortedJoin(intersection)
	combinedA := strings.TrimSpace(sect + " " + sortedJoin(onlyA))
	combinedB := strings.TrimSpace(sect + " " + sortedJoin(onlyB))

	return max(ratio(sect, combinedA), ratio(sect, combinedB), ratio(combinedA, combinedB))
}

// ratio is the normalized indel similarity of two strings, 0-100.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	lenSum := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if lenSum == 0 {
		return 0
	}
	distance := levenshteinDistance(a, b, 2)
	return int(math.Round(100 * float64(lenSum-distance) / float64(lenSum)))
}

// levenshteinDistance calculates the edit distance between two strings
// with unit cost insertions and deletions and the given substitution cost.
func levenshteinDistance(s1, s2 string, substitutionCost int) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = substitutionCost
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
