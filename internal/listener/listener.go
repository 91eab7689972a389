package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quoteflow/internal"
	"quoteflow/internal/config"
	"quoteflow/internal/connectors"
	gmailconnector "quoteflow/internal/connectors/gmail"
	imapconnector "quoteflow/internal/connectors/imap"
	"quoteflow/internal/metrics"
	"quoteflow/internal/pipeline"
	"quoteflow/internal/storage"
)

type connectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

type Service struct {
	db           *storage.DB
	cfg          config.Config
	log          zerolog.Logger
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	newConnector connectorFactory
	now          func() time.Time
}

type CycleResult struct {
	Fetched  int
	Stored   int
	New      int
	Batch    pipeline.BatchResult
	Exported int
}

func NewService(db *storage.DB, cfg config.Config, log zerolog.Logger, reg *prometheus.Registry) *Service {
	s := &Service{
		db:       db,
		cfg:      cfg,
		log:      log.With().Str("component", "listener").Logger(),
		registry: reg,
		now:      time.Now,
	}
	if reg != nil {
		s.metrics = metrics.New(reg)
	}
	s.newConnector = s.makeConnector
	return s
}

// Run polls until ctx is cancelled. Cycle errors are logged and the next
// cycle still runs.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.MetricsAddr != "" && s.registry != nil {
		g.Go(func() error {
			return metrics.Serve(gctx, s.cfg.MetricsAddr, s.registry, s.log)
		})
	}

	g.Go(func() error {
		interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-timer.C:
			}

			if _, err := s.RunCycle(gctx); err != nil && gctx.Err() == nil {
				s.log.Error().Err(err).Msg("listener cycle failed")
			}
			timer.Reset(interval)
		}
	})

	return g.Wait()
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.newConnector(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log, s.metrics)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Fetched: fetchResult.Fetched, Stored: fetchResult.Stored, New: fetchResult.New}

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.log, s.metrics)
	res.Batch, err = processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		if res.Exported, err = s.exportQuotes(provider); err != nil {
			return res, err
		}
	}

	s.log.Info().
		Str("provider", provider).
		Int("fetched", res.Fetched).
		Int("stored", res.Stored).
		Int("new", res.New).
		Int("processed", res.Batch.Processed).
		Int("quotes", res.Batch.Quotes).
		Int("failed", res.Batch.Failed).
		Int("exported", res.Exported).
		Msg("listener cycle done")
	return res, nil
}

// exportQuotes writes every not yet exported quote request for provider into
// one workbook and marks those emails exported.
func (s *Service) exportQuotes(provider string) (int, error) {
	rows, err := s.db.GetExportRows(storage.StatusClassified)
	if err != nil {
		return 0, err
	}

	selected := make([]internal.ClassificationExportRow, 0, len(rows))
	for _, row := range rows {
		if row.Provider == provider {
			selected = append(selected, row)
		}
	}
	if len(selected) == 0 {
		return 0, nil
	}

	filename := fmt.Sprintf("quotes_%s_%s.xlsx", provider, s.now().UTC().Format("20060102T150405Z"))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
	if err := pipeline.ExportClassificationsToXLSX(selected, outputPath); err != nil {
		return 0, err
	}
	for _, row := range selected {
		if err := s.db.UpdateEmailStatus(row.EmailID, storage.StatusExported); err != nil {
			return 0, err
		}
	}
	s.log.Info().Str("file", outputPath).Int("rows", len(selected)).Msg("exported quote requests")
	return len(selected), nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	return NewConnector(ctx, s.cfg, provider)
}

// NewConnector builds the mailbox connector for a provider name.
func NewConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
