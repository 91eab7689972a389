package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"quoteflow/internal"
	"quoteflow/internal/pipeline"
	"quoteflow/internal/storage"
)

func classifyCmd() *cobra.Command {
	var (
		subject     string
		body        string
		catalogPath string
		emlPath     string
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one email and print the result as JSON",
		Long: `Classify one email given as --subject/--body or as a raw .eml file.
Products come from --catalog when set, otherwise from the database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if emlPath == "" && subject == "" && body == "" {
				return fmt.Errorf("--subject/--body or --eml is required")
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			var products []internal.CatalogProduct
			if catalogPath != "" {
				products, err = pipeline.LoadCatalogFile(log, catalogPath)
			} else {
				products, err = storedProducts(cfg.DBPath)
			}
			if err != nil {
				return err
			}

			var result internal.ClassificationResult
			if emlPath != "" {
				result, err = pipeline.ClassifyRawFile(emlPath, cfg.ClassifyAttachments, products)
				if err != nil {
					return err
				}
			} else {
				result = pipeline.Classify(internal.EmailDocument{Subject: subject, Body: body}, products)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "email subject")
	cmd.Flags().StringVar(&body, "body", "", "email body")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (.xlsx, .yaml, .json)")
	cmd.Flags().StringVar(&emlPath, "eml", "", "raw .eml file to classify instead of --subject/--body")
	return cmd
}

func storedProducts(dbPath string) ([]internal.CatalogProduct, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return db.ListProducts()
}
