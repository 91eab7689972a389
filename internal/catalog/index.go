package catalog

import (
	"strings"
	"unicode/utf8"

	"quoteflow/internal"
	"quoteflow/internal/util"
)

// Snapshot is a read-only copy of a catalog prepared for matching. It never
// aliases the slice it was built from, so callers may keep mutating their own
// catalog while a snapshot is shared across goroutines.
type Snapshot struct {
	entries []entry
}

type entry struct {
	product   internal.CatalogProduct
	code      string
	brand     string
	nameLower string
	tokens    []string
	words     map[string]struct{}
}

func BuildSnapshot(products []internal.CatalogProduct) *Snapshot {
	s := &Snapshot{entries: make([]entry, 0, len(products))}
	for _, p := range products {
		nameLower := util.Normalize(p.Name)
		tokens := make([]string, 0, 4)
		for _, tok := range util.NameTokens(nameLower) {
			if utf8.RuneCountInString(tok) > 2 {
				tokens = append(tokens, tok)
			}
		}
		s.entries = append(s.entries, entry{
			product:   p,
			code:      util.Normalize(p.Code),
			brand:     util.Normalize(strings.TrimSpace(p.Brand)),
			nameLower: nameLower,
			tokens:    tokens,
			words:     util.WordSet(nameLower),
		})
	}
	return s
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *Snapshot) Product(i int) internal.CatalogProduct {
	return s.entries[i].product
}

// Code, Brand, NameLower, Tokens and Words expose the precomputed match keys of
// entry i. Tokens holds only name tokens longer than two bytes.
func (s *Snapshot) Code(i int) string { return s.entries[i].code }
func (s *Snapshot) Brand(i int) string { return s.entries[i].brand }
func (s *Snapshot) NameLower(i int) string { return s.entries[i].nameLower }
func (s *Snapshot) Tokens(i int) []string { return s.entries[i].tokens }
func (s *Snapshot) Words(i int) map[string]struct{} { return s.entries[i].words }

func (s *Snapshot) Products() []internal.CatalogProduct {
	out := make([]internal.CatalogProduct, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		out = append(out, s.entries[i].product)
	}
	return out
}
