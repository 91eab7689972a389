package pipeline

import (
	"sort"
	"strings"
	"unicode/utf8"

	"quoteflow/internal"
	"quoteflow/internal/catalog"
	"quoteflow/internal/util"
)

const (
	CodeMatchBonus      = 50.0
	TokenWeightPerChar  = 2.0
	BrandMatchBonus     = 15.0
	FuzzyMatchBonus     = 25.0
	FuzzyMatchThreshold = 0.7
	MultiSignalBoost    = 1.5
	MinMatchScore       = 5.0
	MaxDetectedProducts = 10
)

const FuzzyMatchMarker = "fuzzy_match"

// MatchProducts scores every catalog entry against the normalized text and
// returns the best matches, highest score first. Equal scores keep catalog
// order.
func MatchProducts(text string, snap *catalog.Snapshot) []internal.ProductMatch {
	out := []internal.ProductMatch{}
	if snap.Len() == 0 {
		return out
	}

	textWords := util.WordSet(text)
	for i := 0; i < snap.Len(); i++ {
		score, terms := scoreProduct(text, textWords, snap, i)
		if score <= MinMatchScore {
			continue
		}
		out = append(out, internal.ProductMatch{Product: snap.Product(i), MatchScore: score, MatchedTerms: terms})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	if len(out) > MaxDetectedProducts {
		out = out[:MaxDetectedProducts]
	}
	return out
}

func scoreProduct(text string, textWords map[string]struct{}, snap *catalog.Snapshot, i int) (float64, []string) {
	score := 0.0
	terms := []string{}

	if code := snap.Code(i); code != "" && strings.Contains(text, code) {
		score += CodeMatchBonus
		terms = append(terms, code)
	}

	for _, token := range snap.Tokens(i) {
		if strings.Contains(text, token) {
			score += float64(utf8.RuneCountInString(token)) * TokenWeightPerChar
			terms = append(terms, token)
		}
	}

	if brand := snap.Brand(i); brand != "" && strings.Contains(text, brand) {
		score += BrandMatchBonus
		terms = append(terms, brand)
	}

	if util.Jaccard(textWords, snap.Words(i)) > FuzzyMatchThreshold {
		score += FuzzyMatchBonus
		terms = append(terms, FuzzyMatchMarker)
	}

	if distinctCount(terms) > 1 {
		score *= MultiSignalBoost
	}
	return score, terms
}

func distinctCount(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
