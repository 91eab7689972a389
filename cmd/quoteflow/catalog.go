package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quoteflow/internal/catalog"
	"quoteflow/internal/metrics"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
	}
	cmd.AddCommand(catalogImportCmd())
	cmd.AddCommand(catalogSyncCmd())
	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogDeleteCmd())
	return cmd
}

func catalogImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import products from an .xlsx, .yaml or .json file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			svc := catalog.NewSyncService(a.db, a.cfg, a.log, metrics.New(a.registry))
			res, err := svc.Import(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d products, rejected %d rows\n", len(res.Products), len(res.Rejected))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog file path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func catalogSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the catalog from CATALOG_API_BASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			svc := catalog.NewSyncService(a.db, a.cfg, a.log, metrics.New(a.registry))
			count, err := svc.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog sync complete: %d products\n", count)
			return nil
		},
	}
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			products, err := a.db.ListProducts()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tBRAND\tCATEGORY\tPRICE\tTAX")
			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n", p.Code, p.Name, p.Brand, p.Category, p.UnitPrice, p.TaxRate)
			}
			return w.Flush()
		},
	}
}

func catalogDeleteCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a product by code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.db.DeleteProduct(code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted product %s\n", code)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "product code")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
