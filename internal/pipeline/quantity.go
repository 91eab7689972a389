package pipeline

import (
	"math"
	"strings"
	"unicode/utf8"

	"quoteflow/internal"
	"quoteflow/internal/util"
)

const (
	GenericQuantityConfidence = 0.5
	MissingNameConfidence     = 0.3
	MaxQuantityConfidence     = 0.9
	ProximityWindow           = 100.0
)

// ExtractQuantities finds quantity mentions in text. Every accepted quantity
// is paired with every detected product name; without products each quantity
// goes to the generic bucket.
func ExtractQuantities(text string, productNames []string) []internal.QuantityMention {
	lower := util.Normalize(text)
	hits := util.FindQuantities(lower)
	out := []internal.QuantityMention{}

	for _, hit := range hits {
		if len(productNames) == 0 {
			out = append(out, internal.QuantityMention{
				ProductRef: internal.GenericProductRef,
				Quantity:   hit.Value,
				Confidence: GenericQuantityConfidence,
			})
			continue
		}
		for _, name := range productNames {
			out = append(out, internal.QuantityMention{
				ProductRef: name,
				Quantity:   hit.Value,
				Confidence: proximityConfidence(lower, hit.Index, name),
			})
		}
	}
	return out
}

// proximityConfidence measures distance in characters; qtyIndex is already a
// rune offset.
func proximityConfidence(lower string, qtyIndex int, productName string) float64 {
	at := strings.Index(lower, util.Normalize(productName))
	if at < 0 {
		return MissingNameConfidence
	}
	nameIndex := utf8.RuneCountInString(lower[:at])
	distance := math.Abs(float64(qtyIndex - nameIndex))
	proximity := math.Max(0, 1-distance/ProximityWindow)
	return math.Min(MaxQuantityConfidence, 0.5+proximity)
}
