package connectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"quoteflow/internal/metrics"
	"quoteflow/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

type FetchResult struct {
	Fetched int
	Stored  int
	New     int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log zerolog.Logger, m *metrics.Metrics) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
		metrics:   m,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		s.metrics.ObserveError("fetch")
		return FetchResult{}, fmt.Errorf("fetch inbox %s: %w", label, err)
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, created, err := s.store.Store(msg)
		if err != nil {
			return res, fmt.Errorf("store %s: %w", msg.MessageID, err)
		}
		res.Stored++
		if created {
			res.New++
			s.metrics.ObserveFetched(msg.Provider, 1)
		}
		s.log.Debug().
			Int("emailId", row.ID).
			Str("provider", msg.Provider).
			Str("messageId", msg.MessageID).
			Bool("new", created).
			Msg("stored email")
	}

	return res, nil
}
