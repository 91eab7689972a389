package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxQuantity is the exclusive upper bound for an accepted quantity. Larger
// numbers are almost always phone numbers, order ids or years.
const MaxQuantity = 1_000_000

var quantityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(?:units|unit|pieces|piece|pcs|pc|nos|no|qty|quantity)`),
	regexp.MustCompile(`(?i)(?:quantity|qty)\s*[:=]?\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:of|x)\s+([a-z][a-z\s]*)`),
	regexp.MustCompile(`(?i)(?:need|require|want|order)\s+(\d+)\s*(?:units|unit|pieces|piece|pcs)?`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:sets|set|boxes|box|cartons|carton|packets|packet)`),
}

type QuantityHit struct {
	Value int
	// Index is the character (rune) offset of the whole pattern match in the
	// scanned text.
	Index int
	Raw   string
}

// FindQuantities runs every quantity pattern over text and returns all hits in
// pattern order. The same number may be reported by several patterns.
func FindQuantities(text string) []QuantityHit {
	var out []QuantityHit
	for _, re := range quantityPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			value, err := strconv.Atoi(text[loc[2]:loc[3]])
			if err != nil || value <= 0 || value >= MaxQuantity {
				continue
			}
			out = append(out, QuantityHit{
				Value: value,
				Index: utf8.RuneCountInString(text[:loc[0]]),
				Raw:   text[loc[0]:loc[1]],
			})
		}
	}
	return out
}

var (
	reThousandDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reThousandComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	reCurrency      = regexp.MustCompile(`[^0-9.,\-]`)
)

// ParseDecimal converts a loosely formatted numeric cell ("1 000,50", "1.000",
// "12,5 %", "$19.99") into a float.
func ParseDecimal(input string) (float64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(input), "\u00A0", " ")
	if raw == "" {
		return 0, nil
	}
	compact := reCurrency.ReplaceAllString(strings.ReplaceAll(raw, " ", ""), "")
	switch {
	case compact == "":
		return 0, fmt.Errorf("not a number: %q", input)
	case reThousandDot.MatchString(compact):
		compact = strings.ReplaceAll(compact, ".", "")
	case reThousandComma.MatchString(compact):
		compact = strings.ReplaceAll(compact, ",", "")
	case strings.Contains(compact, ",") && !strings.Contains(compact, "."):
		compact = strings.ReplaceAll(compact, ",", ".")
	case strings.Contains(compact, ",") && strings.Contains(compact, "."):
		compact = strings.ReplaceAll(compact, ",", "")
	}
	v, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", input)
	}
	return v, nil
}
