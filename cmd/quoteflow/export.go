package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quoteflow/internal/pipeline"
	"quoteflow/internal/storage"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export classification results",
	}
	cmd.AddCommand(exportXLSXCmd())
	return cmd
}

func exportXLSXCmd() *cobra.Command {
	var (
		out        string
		quotesOnly bool
		markDone   bool
	)
	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Write one row per classified email to an .xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(out) == "" {
				return fmt.Errorf("--out is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			statuses := []string{storage.StatusClassified, storage.StatusSkipped}
			if quotesOnly {
				statuses = []string{storage.StatusClassified}
			}
			rows, err := a.db.GetExportRows(statuses...)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("nothing to export")
			}
			if err := pipeline.ExportClassificationsToXLSX(rows, out); err != nil {
				return err
			}
			if markDone {
				for _, row := range rows {
					if row.IsQuoteRequest {
						if err := a.db.UpdateEmailStatus(row.EmailID, storage.StatusExported); err != nil {
							return err
						}
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path")
	cmd.Flags().BoolVar(&quotesOnly, "quotes-only", false, "export quote requests only")
	cmd.Flags().BoolVar(&markDone, "mark-exported", false, "mark exported quote requests so the listener skips them")
	return cmd
}
