package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func mkXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func TestImportXLSXRussianHeader(t *testing.T) {
	blob := mkXLSX(t, [][]any{
		{"Наименование", "Артикул", "Производитель", "Цена", "НДС"},
		{"Кабель ВВГ", "VVG-3", "Элком", "1 200,50", 20},
		{"", "EMPTY-NAME", "", "", ""},
		{"Провод ПВС", "PVS-2", "", 99, 20},
	})

	res, err := ImportXLSX(blob)
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "VVG-3", res.Products[0].Code)
	assert.Equal(t, "Элком", res.Products[0].Brand)
	assert.Equal(t, 1200.5, res.Products[0].UnitPrice)
	assert.Equal(t, float64(20), res.Products[0].TaxRate)
	assert.Equal(t, "PVS-2", res.Products[1].Code)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 3, res.Rejected[0].Row)
	assert.ErrorIs(t, res.Rejected[0], ErrInvalidProduct)
}

func TestImportXLSXWithoutHeader(t *testing.T) {
	blob := mkXLSX(t, [][]any{
		{"Steel Bolt", "SB-2", "Acme", "fasteners", "0.35", "0.2"},
	})

	res, err := ImportXLSX(blob)
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "fasteners", res.Products[0].Category)
	assert.Equal(t, 0.35, res.Products[0].UnitPrice)
}

func TestImportFileYAML(t *testing.T) {
	path := writeFile(t, "catalog.yaml", []byte(`
products:
  - name: Widget-X Pro
    code: WX-100
    brand: Acme
    unitPrice: 12.5
  - name: Hex Nut
    code: HN-8
`))

	res, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "Acme", res.Products[0].Brand)
	assert.Equal(t, 12.5, res.Products[0].UnitPrice)
	assert.Empty(t, res.Rejected)
}

func TestImportFileJSONList(t *testing.T) {
	path := writeFile(t, "catalog.json", []byte(`[
		{"name": "Steel Bolt", "code": "SB-2"},
		{"name": "No Code"}
	]`))

	res, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 2, res.Rejected[0].Row)
}

func TestImportFileUnsupported(t *testing.T) {
	path := writeFile(t, "catalog.csv", []byte("name,code\n"))
	_, err := ImportFile(path)
	assert.Error(t, err)
}
