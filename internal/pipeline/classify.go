package pipeline

import (
	"fmt"
	"math"
	"strings"

	"quoteflow/internal"
	"quoteflow/internal/catalog"
	"quoteflow/internal/util"
)

const (
	QuantityPresenceBonus = 10.0
	MatchScoreDivisor     = 10.0
	HighTierThreshold     = 15.0
	MediumTierThreshold   = 8.0
	QuoteRequestThreshold = 5.0
)

// Classify decides whether an email is a quote request and which catalog
// products and quantities it mentions. products is copied before use and never
// modified.
func Classify(email internal.EmailDocument, products []internal.CatalogProduct) internal.ClassificationResult {
	return ClassifySnapshot(email, catalog.BuildSnapshot(products))
}

// ClassifySnapshot is Classify against a prepared snapshot, for callers that
// classify many emails against one catalog.
func ClassifySnapshot(email internal.EmailDocument, snap *catalog.Snapshot) internal.ClassificationResult {
	raw := util.JoinSubjectBody(email.Subject, email.Body)
	text := util.Normalize(raw)

	intent := ScoreIntent(text)
	matches := MatchProducts(text, snap)

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Product.Name)
	}
	quantities := ExtractQuantities(raw, names)

	result := aggregate(text, intent, matches, quantities)
	result.EmailID = email.ID
	return result
}

func aggregate(text string, intent IntentResult, matches []internal.ProductMatch, quantities []internal.QuantityMention) internal.ClassificationResult {
	overall := intent.Score
	if len(matches) > 0 {
		overall += matches[0].MatchScore / MatchScoreDivisor
	}
	if len(quantities) > 0 {
		overall += QuantityPresenceBonus
	}

	tier := internal.TierLow
	switch {
	case overall >= HighTierThreshold && len(matches) > 0:
		tier = internal.TierHigh
	case overall >= MediumTierThreshold || len(matches) > 0:
		tier = internal.TierMedium
	}

	// Independent of the tier: a product match alone yields medium while
	// the email can still fall short of a quote request.
	isQuote := overall >= QuoteRequestThreshold

	return internal.ClassificationResult{
		IsQuoteRequest:      isQuote,
		ConfidenceTier:      tier,
		Score:               overall,
		DetectedProducts:    matches,
		ExtractedQuantities: quantities,
		Reasoning:           reasoning(intent.MatchedKeywords, len(matches), len(quantities), overall),
		Categories:          categories(text, isQuote, len(matches) > 0),
	}
}

func categories(text string, isQuote, hasProducts bool) []internal.Category {
	out := []internal.Category{}
	if isQuote {
		out = append(out, internal.CategoryQuoteRequest)
		if hasProducts {
			out = append(out, internal.CategorySpecificProduct)
		} else {
			out = append(out, internal.CategoryGeneralInquiry)
		}
	} else {
		out = append(out, internal.CategoryGeneralEmail)
	}
	if util.ContainsAny(text, "urgent", "asap") {
		out = append(out, internal.CategoryUrgent)
	}
	if util.ContainsAny(text, "bulk", "wholesale") {
		out = append(out, internal.CategoryBulkOrder)
	}
	return out
}

func reasoning(keywords []string, products, quantities int, overall float64) string {
	parts := make([]string, 0, 4)
	if len(keywords) > 0 {
		parts = append(parts, "Quote keywords: "+strings.Join(keywords, ", "))
	}
	if products > 0 {
		parts = append(parts, fmt.Sprintf("%d product(s) detected", products))
	}
	if quantities > 0 {
		parts = append(parts, fmt.Sprintf("%d quantity mention(s)", quantities))
	}
	parts = append(parts, fmt.Sprintf("Overall score: %d", int(math.Round(overall))))
	return strings.Join(parts, " | ")
}
