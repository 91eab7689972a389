package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quoteflow/internal"
	"quoteflow/internal/catalog"
	"quoteflow/internal/config"
	"quoteflow/internal/metrics"
	"quoteflow/internal/storage"
)

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewProcessingService(db *storage.DB, cfg config.Config, log zerolog.Logger, m *metrics.Metrics) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, log: log, metrics: m}
}

type ProcessResult struct {
	EmailID int
	Status  string
	Result  internal.ClassificationResult
}

type BatchResult struct {
	Processed int
	Quotes    int
	Failed    int
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	snap, err := catalog.LoadSnapshot(s.db)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email, snap)
}

// ProcessPending classifies fetched emails against one catalog snapshot.
// A failed email is marked and counted; the batch carries on.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (BatchResult, error) {
	pending, err := s.db.ListEmailsByStatus(storage.StatusFetched, provider, limit)
	if err != nil {
		return BatchResult{}, err
	}
	if len(pending) == 0 {
		return BatchResult{}, nil
	}

	snap, err := catalog.LoadSnapshot(s.db)
	if err != nil {
		s.metrics.ObserveError("catalog")
		return BatchResult{}, err
	}
	s.metrics.SetCatalogSize(snap.Len())

	var (
		mu    sync.Mutex
		batch BatchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ClassifyWorkers)
	for _, email := range pending {
		email := email
		g.Go(func() error {
			res, err := s.ProcessEmail(gctx, email, snap)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				batch.Failed++
				s.log.Error().Err(err).Int("emailId", email.ID).Msg("classification failed")
				return nil
			}
			batch.Processed++
			if res.Result.IsQuoteRequest {
				batch.Quotes++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return batch, err
	}
	return batch, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow, snap *catalog.Snapshot) (ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return ProcessResult{}, err
	}
	start := time.Now()
	traceID := uuid.NewString()

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, s.fail(email, "read", fmt.Errorf("read raw email %d: %w", email.ID, err))
	}
	parsed, err := ParseEmailRaw(raw, s.cfg.ClassifyAttachments)
	if err != nil {
		return ProcessResult{}, s.fail(email, "parse", fmt.Errorf("parse email %d: %w", email.ID, err))
	}
	parseDone := time.Now()

	doc := internal.EmailDocument{
		ID:      strconv.Itoa(email.ID),
		Subject: firstNonEmpty(parsed.Subject, email.Subject),
		Body:    parsed.Body,
	}
	result := ClassifySnapshot(doc, snap)
	classifySeconds := time.Since(parseDone).Seconds()

	if err := s.db.SaveClassification(email.ID, result); err != nil {
		return ProcessResult{}, s.fail(email, "store", err)
	}
	status := storage.StatusSkipped
	if result.IsQuoteRequest {
		status = storage.StatusClassified
	}
	if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
		return ProcessResult{}, err
	}

	timings := map[string]float64{
		"parseMs":    float64(parseDone.Sub(start).Milliseconds()),
		"classifyMs": classifySeconds * 1000,
		"totalMs":    float64(time.Since(start).Milliseconds()),
	}
	counts := map[string]int{
		"products":    len(result.DetectedProducts),
		"quantities":  len(result.ExtractedQuantities),
		"attachments": len(parsed.Attachments),
	}
	if err := s.db.InsertRun(traceID, email.ID, timings, counts); err != nil {
		s.log.Warn().Err(err).Str("traceId", traceID).Msg("insert run")
	}
	s.metrics.ObserveClassification(result, classifySeconds)

	s.log.Debug().
		Str("traceId", traceID).
		Int("emailId", email.ID).
		Str("tier", string(result.ConfidenceTier)).
		Float64("score", result.Score).
		Bool("quote", result.IsQuoteRequest).
		Msg("email classified")

	return ProcessResult{EmailID: email.ID, Status: status, Result: result}, nil
}

func (s *ProcessingService) fail(email internal.EmailRow, stage string, err error) error {
	s.metrics.ObserveError(stage)
	if uerr := s.db.UpdateEmailStatus(email.ID, storage.StatusFailed); uerr != nil {
		s.log.Warn().Err(uerr).Int("emailId", email.ID).Msg("mark email failed")
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
