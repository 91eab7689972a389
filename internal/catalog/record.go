package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"quoteflow/internal"
	"quoteflow/internal/util"
)

var ErrInvalidProduct = errors.New("invalid catalog product")

var fieldAliases = map[string][]string{
	"name":      {"name", "title", "header", "product"},
	"code":      {"code", "sku", "articul", "productcode"},
	"brand":     {"brand", "manufacturer", "manufacturerheader", "vendor"},
	"category":  {"category", "group"},
	"unitPrice": {"unitprice", "unit_price", "price"},
	"taxRate":   {"taxrate", "tax_rate", "tax", "vat"},
}

// ProductFromRecord converts a loosely shaped catalog row (JSON, YAML or API
// payload) into a CatalogProduct. Keys are matched case-insensitively and
// numeric fields may arrive as numbers or formatted strings.
func ProductFromRecord(raw map[string]any) (internal.CatalogProduct, error) {
	lookup := make(map[string]any, len(raw))
	for k, v := range raw {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}
	field := func(name string) any {
		for _, alias := range fieldAliases[name] {
			if v, ok := lookup[alias]; ok && v != nil {
				return v
			}
		}
		return nil
	}

	p := internal.CatalogProduct{
		Name:     toString(field("name")),
		Code:     toString(field("code")),
		Brand:    toString(field("brand")),
		Category: toString(field("category")),
	}

	var err error
	if p.UnitPrice, err = toFloat(field("unitPrice")); err != nil {
		return internal.CatalogProduct{}, fmt.Errorf("%w: unitPrice: %v", ErrInvalidProduct, err)
	}
	if p.TaxRate, err = toFloat(field("taxRate")); err != nil {
		return internal.CatalogProduct{}, fmt.Errorf("%w: taxRate: %v", ErrInvalidProduct, err)
	}
	return p, Validate(p)
}

func Validate(p internal.CatalogProduct) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidProduct)
	case strings.TrimSpace(p.Code) == "":
		return fmt.Errorf("%w: empty code for %q", ErrInvalidProduct, p.Name)
	case p.UnitPrice < 0:
		return fmt.Errorf("%w: negative unitPrice for %s", ErrInvalidProduct, p.Code)
	case p.TaxRate < 0:
		return fmt.Errorf("%w: negative taxRate for %s", ErrInvalidProduct, p.Code)
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return util.ParseDecimal(t)
	default:
		return 0, fmt.Errorf("unsupported numeric value %v", v)
	}
}
