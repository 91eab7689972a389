package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quoteflow/internal"
	"quoteflow/internal/connectors"
	"quoteflow/internal/listener"
	"quoteflow/internal/metrics"
	"quoteflow/internal/pipeline"
	"quoteflow/internal/storage"
)

func mailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Fetch and classify mail",
	}
	cmd.AddCommand(mailFetchCmd())
	cmd.AddCommand(mailProcessCmd())
	cmd.AddCommand(mailListenCmd())
	cmd.AddCommand(mailShowCmd())
	return cmd
}

func mailFetchCmd() *cobra.Command {
	var (
		provider string
		label    string
		maxCount int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Store unread messages from the mailbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := listener.NewConnector(cmd.Context(), a.cfg, strings.ToLower(provider))
			if err != nil {
				return err
			}
			fetch := connectors.NewFetchService(a.db, a.cfg.RawMailDir, conn, a.log, metrics.New(a.registry))
			result, err := fetch.FetchAndStore(cmd.Context(), label, maxCount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mail fetch done provider=%s fetched=%d stored=%d new=%d\n", provider, result.Fetched, result.Stored, result.New)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "gmail", "gmail|imap")
	cmd.Flags().StringVar(&label, "label", "INBOX", "mailbox or label")
	cmd.Flags().IntVar(&maxCount, "max", 50, "max messages")
	return cmd
}

func mailProcessCmd() *cobra.Command {
	var (
		provider  string
		messageID string
		batch     int
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Classify fetched messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			processor := pipeline.NewProcessingService(a.db, a.cfg, a.log, metrics.New(a.registry))
			if strings.TrimSpace(messageID) != "" {
				res, err := processor.ProcessByProviderMessageID(cmd.Context(), provider, messageID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed email id=%d status=%s tier=%s score=%.2f\n",
					res.EmailID, res.Status, res.Result.ConfidenceTier, res.Result.Score)
				return nil
			}
			res, err := processor.ProcessPending(cmd.Context(), batch, provider)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed pending emails=%d quotes=%d failed=%d\n", res.Processed, res.Quotes, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only process mail from this provider")
	cmd.Flags().StringVar(&messageID, "message-id", "", "process one message by provider message id")
	cmd.Flags().IntVar(&batch, "batch", 20, "batch size")
	return cmd
}

func mailListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Poll the mailbox and classify new mail until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return listener.NewService(a.db, a.cfg, a.log, a.registry).Run(cmd.Context())
		},
	}
}

type emailReport struct {
	Email          internal.EmailRow              `json:"email"`
	Classification *internal.ClassificationResult `json:"classification,omitempty"`
	Runs           int                            `json:"runs"`
}

func loadEmailReport(db *storage.DB, id int) (emailReport, error) {
	email, err := db.GetEmailByID(id)
	if err != nil {
		return emailReport{}, err
	}
	if email == nil {
		return emailReport{}, fmt.Errorf("email %d: %w", id, storage.ErrNotFound)
	}

	report := emailReport{Email: *email}
	result, err := db.GetClassification(id)
	switch {
	case err == nil:
		report.Classification = &result
	case !errors.Is(err, storage.ErrNotFound):
		return emailReport{}, err
	}
	if report.Runs, err = db.CountRuns(id); err != nil {
		return emailReport{}, err
	}
	return report, nil
}

func mailShowCmd() *cobra.Command {
	var id int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored email with its latest classification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := loadEmailReport(a.db, id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "email id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
