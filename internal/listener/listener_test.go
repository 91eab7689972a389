package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal"
	"quoteflow/internal/config"
	"quoteflow/internal/connectors"
	"quoteflow/internal/logging"
	"quoteflow/internal/pipeline"
	"quoteflow/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (s stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return s.messages, nil
}

func rawMessage(subject, body string) []byte {
	return []byte("From: buyer@example.com\r\nSubject: " + subject + "\r\nContent-Type: text/plain\r\n\r\n" + body + "\r\n")
}

func TestRunCycleFetchesClassifiesAndExports(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.UpsertProducts([]internal.CatalogProduct{
		{Name: "Widget-X Pro", Code: "WX-100", Brand: "Acme"},
	}))

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		OutputDir:                filepath.Join(tmp, "out"),
		ClassifyWorkers:          2,
		MailListenerProvider:     "imap",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MailListenerAutoExport:   true,
		MailListenerIntervalSec:  1,
	}
	reg := prometheus.NewRegistry()
	svc := NewService(db, cfg, logging.Nop(), reg)
	svc.now = func() time.Time { return time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC) }
	svc.newConnector = func(context.Context, string) (connectors.MailConnector, error) {
		return stubConnector{messages: []internal.FetchedMailMessage{
			{Provider: "imap", MessageID: "<q@x>", Subject: "Quote request", Raw: rawMessage("Quote request", "Please quote 20 pcs of WX-100 from Acme")},
			{Provider: "imap", MessageID: "<n@x>", Subject: "Lunch", Raw: rawMessage("Lunch", "see you at noon")},
		}}, nil
	}

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{
		Fetched:  2,
		Stored:   2,
		New:      2,
		Batch:    pipeline.BatchResult{Processed: 2, Quotes: 1},
		Exported: 1,
	}, res)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "listener", "quotes_imap_20260208T090000Z.xlsx"))
	require.NoError(t, err)

	quote, err := db.MustEmailByProviderMessageID("imap", "<q@x>")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusExported, quote.Status)
	other, err := db.MustEmailByProviderMessageID("imap", "<n@x>")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusSkipped, other.Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(svc.metrics.MailFetchedTotal.WithLabelValues("imap")))

	// A second cycle sees the same mailbox; nothing new is classified or exported.
	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.New)
	assert.Equal(t, 0, res.Batch.Processed)
	assert.Equal(t, 0, res.Exported)
}

func TestRunStopsOnCancel(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, config.Config{MailListenerProvider: "pop3", MailListenerIntervalSec: 1}, logging.Nop(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, svc.Run(ctx))
}

func TestUnsupportedProvider(t *testing.T) {
	_, err := NewConnector(context.Background(), config.Config{}, "pop3")
	assert.ErrorContains(t, err, "unsupported listener provider")
}
