package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal"
	"quoteflow/internal/config"
	"quoteflow/internal/metrics"
	"quoteflow/internal/storage"
)

const LastSyncKey = "catalog.last_sync"

type productSource interface {
	FetchAll(ctx context.Context) ([]internal.CatalogProduct, error)
}

type SyncService struct {
	db      *storage.DB
	source  productSource
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewSyncService(db *storage.DB, cfg config.Config, log zerolog.Logger, m *metrics.Metrics) *SyncService {
	return &SyncService{db: db, source: NewClient(cfg, log), log: log, metrics: m}
}

// Sync pulls the remote catalog and upserts it. Products missing upstream are
// left in place; use DeleteProduct to retire them.
func (s *SyncService) Sync(ctx context.Context) (int, error) {
	started := time.Now()
	products, err := s.source.FetchAll(ctx)
	if err != nil {
		s.metrics.ObserveError("catalog_sync")
		return 0, fmt.Errorf("fetch catalog: %w", err)
	}
	if err := s.db.UpsertProducts(products); err != nil {
		return 0, fmt.Errorf("store catalog: %w", err)
	}
	if err := s.db.SetMetadata(LastSyncKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}

	if all, err := s.db.ListProducts(); err == nil {
		s.metrics.SetCatalogSize(len(all))
	}
	s.log.Info().
		Int("products", len(products)).
		Dur("took", time.Since(started)).
		Msg("catalog synced")
	return len(products), nil
}

// Import stores products read from a local file and reports rejected rows.
func (s *SyncService) Import(path string) (ImportResult, error) {
	res, err := ImportFile(path)
	if err != nil {
		return res, err
	}
	for _, rej := range res.Rejected {
		s.log.Warn().Int("row", rej.Row).Err(rej.Err).Str("file", path).Msg("rejected catalog row")
	}
	if err := s.db.UpsertProducts(res.Products); err != nil {
		return res, fmt.Errorf("store catalog: %w", err)
	}
	if all, err := s.db.ListProducts(); err == nil {
		s.metrics.SetCatalogSize(len(all))
	}
	return res, nil
}

// LoadSnapshot reads the stored catalog into an immutable snapshot.
func LoadSnapshot(db *storage.DB) (*Snapshot, error) {
	products, err := db.ListProducts()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return BuildSnapshot(products), nil
}
