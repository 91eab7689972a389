package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"quoteflow/internal"
)

type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

type ImportResult struct {
	Products []internal.CatalogProduct
	Rejected []RowError
}

var headerProbes = map[string][]string{
	"name":      {"наимен", "товар", "номенк", "name", "product", "title"},
	"code":      {"артикул", "код", "code", "sku"},
	"brand":     {"бренд", "производ", "brand", "manufacturer", "vendor"},
	"category":  {"категор", "группа", "category", "group"},
	"unitPrice": {"цена", "price"},
	"taxRate":   {"ндс", "налог", "tax", "vat"},
}

var columnOrder = []string{"name", "code", "brand", "category", "unitPrice", "taxRate"}

// ImportFile reads a catalog from .xlsx, .yaml/.yml or .json. Invalid rows are
// collected in Rejected; only unreadable files return an error.
func ImportFile(path string) (ImportResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ImportXLSX(blob)
	case ".yaml", ".yml":
		var records []map[string]any
		if err := decodeRecords(blob, yaml.Unmarshal, &records); err != nil {
			return ImportResult{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return fromRecords(records), nil
	case ".json":
		var records []map[string]any
		if err := decodeRecords(blob, json.Unmarshal, &records); err != nil {
			return ImportResult{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return fromRecords(records), nil
	default:
		return ImportResult{}, fmt.Errorf("unsupported catalog file: %s", path)
	}
}

// decodeRecords accepts either a bare list or an object with a "products" list.
func decodeRecords(blob []byte, unmarshal func([]byte, any) error, out *[]map[string]any) error {
	if err := unmarshal(blob, out); err == nil {
		return nil
	}
	var wrapped struct {
		Products []map[string]any `json:"products" yaml:"products"`
	}
	if err := unmarshal(blob, &wrapped); err != nil {
		return err
	}
	*out = wrapped.Products
	return nil
}

func fromRecords(records []map[string]any) ImportResult {
	res := ImportResult{Products: []internal.CatalogProduct{}}
	for i, rec := range records {
		p, err := ProductFromRecord(rec)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: i + 1, Err: err})
			continue
		}
		res.Products = append(res.Products, p)
	}
	return res
}

// ImportXLSX reads the first sheet. A header row within the first three rows
// selects columns; without one the order is name, code, brand, category,
// price, tax.
func ImportXLSX(content []byte) (ImportResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()

	res := ImportResult{Products: []internal.CatalogProduct{}}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return res, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{}, err
	}

	var columns map[string]int
	for i, row := range rows {
		cells := trimCells(row)
		if isBlankRow(cells) {
			continue
		}
		if columns == nil && i < 3 {
			if found := inferColumns(cells); found != nil {
				columns = found
				continue
			}
		}
		if columns == nil {
			columns = map[string]int{}
			for idx, key := range columnOrder {
				columns[key] = idx
			}
		}

		rec := map[string]any{}
		for key, idx := range columns {
			if idx < len(cells) && cells[idx] != "" {
				rec[key] = cells[idx]
			}
		}
		p, err := ProductFromRecord(rec)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: i + 1, Err: err})
			continue
		}
		res.Products = append(res.Products, p)
	}
	return res, nil
}

func inferColumns(headers []string) map[string]int {
	found := map[string]int{}
	for _, key := range columnOrder {
		for i, h := range headers {
			h = strings.ToLower(h)
			if containsProbe(h, headerProbes[key]) && !taken(found, i) {
				found[key] = i
				break
			}
		}
	}
	_, hasName := found["name"]
	_, hasCode := found["code"]
	if !hasName || !hasCode {
		return nil
	}
	return found
}

func containsProbe(h string, probes []string) bool {
	for _, p := range probes {
		if strings.Contains(h, p) {
			return true
		}
	}
	return false
}

func taken(cols map[string]int, idx int) bool {
	for _, v := range cols {
		if v == idx {
			return true
		}
	}
	return false
}

func trimCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, strings.Join(strings.Fields(c), " "))
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
