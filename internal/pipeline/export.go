package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"quoteflow/internal"
	"quoteflow/internal/util"
)

var exportHeaders = []string{
	"email_id", "provider", "message_id", "received_at", "sender", "subject",
	"is_quote_request", "confidence_tier", "score", "categories",
	"top_product_code", "top_product_name", "top_match_score",
	"quantities", "reasoning",
}

func ExportClassificationsToXLSX(rows []internal.ClassificationExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.EmailID)
		set(2, row.Provider)
		set(3, row.MessageID)
		set(4, row.ReceivedAt)
		set(5, row.Sender)
		set(6, row.Subject)
		set(7, row.IsQuoteRequest)
		set(8, row.ConfidenceTier)
		set(9, row.Score)
		set(10, row.Categories)
		set(11, util.DerefString(row.TopProductCode))
		set(12, util.DerefString(row.TopProductName))
		set(13, derefFloat(row.TopMatchScore))
		set(14, row.Quantities)
		set(15, row.Reasoning)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
