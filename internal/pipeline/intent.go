package pipeline

import "strings"

// KeywordTable is one weighted group of intent phrases. A phrase contributes
// its table weight once if it occurs anywhere in the normalized text.
type KeywordTable struct {
	Name     string
	Weight   float64
	Negative bool
	Phrases  []string
}

var IntentTables = []KeywordTable{
	{
		Name:   "high",
		Weight: 3,
		Phrases: []string{
			"quote", "quotation", "price quote", "pricing", "estimate", "cost estimate",
			"how much", "what is the price", "price list", "rate card",
		},
	},
	{
		Name:   "medium",
		Weight: 2,
		Phrases: []string{
			"price", "cost", "rates", "charges", "amount", "invoice", "purchase", "buy",
			"order", "procurement", "tender",
		},
	},
	{
		Name:   "low",
		Weight: 1,
		Phrases: []string{
			"inquiry", "enquiry", "interested", "need", "require", "supply", "provide",
			"available", "stock", "delivery",
		},
	},
	{
		Name:     "negative",
		Weight:   -2,
		Negative: true,
		Phrases: []string{
			"complaint", "issue", "problem", "return", "refund", "cancel", "support",
			"help", "question", "information only",
		},
	},
}

type IntentResult struct {
	Score           float64
	MatchedKeywords []string
}

func ScoreIntent(text string) IntentResult {
	return ScoreIntentWith(text, IntentTables)
}

// ScoreIntentWith scores text against the given tables. Negative hits are
// reported with a leading "-". The total never drops below zero.
func ScoreIntentWith(text string, tables []KeywordTable) IntentResult {
	score := 0.0
	matched := []string{}
	for _, table := range tables {
		for _, phrase := range table.Phrases {
			if phrase == "" || !strings.Contains(text, phrase) {
				continue
			}
			score += table.Weight
			if table.Negative {
				matched = append(matched, "-"+phrase)
			} else {
				matched = append(matched, phrase)
			}
		}
	}
	if score < 0 {
		score = 0
	}
	return IntentResult{Score: score, MatchedKeywords: matched}
}
