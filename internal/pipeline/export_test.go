package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"quoteflow/internal"
	"quoteflow/internal/util"
)

func TestExportClassificationsToXLSX(t *testing.T) {
	rows := []internal.ClassificationExportRow{
		{
			EmailID: 1, Provider: "gmail", MessageID: "m1", Subject: "Quote",
			IsQuoteRequest: true, ConfidenceTier: "high", Score: 22.5,
			TopProductCode: util.StringPtr("WX-100"),
			TopProductName: util.StringPtr("Widget-X Pro"),
			TopMatchScore:  util.FloatPtr(97.5),
			Quantities:     "Widget-X Pro=20 (0.90)",
			Reasoning:      "Overall score: 23",
		},
		{EmailID: 2, Provider: "gmail", MessageID: "m2", ConfidenceTier: "low", Reasoning: "Overall score: 0"},
	}
	out := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	require.NoError(t, ExportClassificationsToXLSX(rows, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, exportHeaders, got[0])
	require.Len(t, got[1], len(exportHeaders))
	assert.Equal(t, []string{"WX-100", "Widget-X Pro", "97.5"}, got[1][10:13])
	require.Len(t, got[2], len(exportHeaders))
	assert.Equal(t, []string{"", "", ""}, got[2][10:13])
	assert.Equal(t, "Overall score: 0", got[2][14])
}
