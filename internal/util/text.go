package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// Normalize lower-cases input. Keyword tables and catalog fields are compared
// against this form, so nothing else (stemming, folding) is applied.
func Normalize(input string) string {
	return strings.ToLower(input)
}

func JoinSubjectBody(subject, body string) string {
	return subject + " " + body
}

func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NameTokens splits a product name on whitespace, hyphen, underscore and comma.
func NameTokens(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		switch r {
		case '-', '_', ',':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
	})
}

func WordSet(input string) map[string]struct{} {
	words := strings.Fields(input)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func ContainsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
