package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal"
	"quoteflow/internal/logging"
	"quoteflow/internal/metrics"
	"quoteflow/internal/storage"
)

type fakeSource struct {
	products []internal.CatalogProduct
	err      error
}

func (f fakeSource) FetchAll(context.Context) ([]internal.CatalogProduct, error) {
	return f.products, f.err
}

func newTestSync(t *testing.T, src productSource) (*SyncService, *storage.DB, *metrics.Metrics) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := metrics.New(prometheus.NewRegistry())
	return &SyncService{db: db, source: src, log: logging.Nop(), metrics: m}, db, m
}

func TestSyncStoresProductsAndStampsMetadata(t *testing.T) {
	svc, db, m := newTestSync(t, fakeSource{products: []internal.CatalogProduct{
		{Name: "Widget-X Pro", Code: "WX-100", Brand: "Acme"},
		{Name: "Steel Bolt", Code: "SB-2"},
	}})

	n, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := LoadSnapshot(db)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CatalogProducts))

	stamp, err := db.GetMetadata(LastSyncKey)
	require.NoError(t, err)
	require.NotNil(t, stamp)
	_, err = time.Parse(time.RFC3339, *stamp)
	assert.NoError(t, err)
}

func TestSyncUpstreamFailureLeavesCatalog(t *testing.T) {
	boom := errors.New("catalog down")
	svc, db, m := newTestSync(t, fakeSource{err: boom})
	require.NoError(t, db.UpsertProducts([]internal.CatalogProduct{{Name: "Hex Nut", Code: "HN-8"}}))

	_, err := svc.Sync(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProcessingErrorsTotal.WithLabelValues("catalog_sync")))

	products, err := db.ListProducts()
	require.NoError(t, err)
	assert.Len(t, products, 1)
	stamp, err := db.GetMetadata(LastSyncKey)
	require.NoError(t, err)
	assert.Nil(t, stamp)
}

func TestImportFromFile(t *testing.T) {
	svc, db, _ := newTestSync(t, fakeSource{})
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products": [{"name": "Hex Nut", "code": "HN-8"}, {"code": "X"}]}`), 0o644))

	res, err := svc.Import(path)
	require.NoError(t, err)
	assert.Len(t, res.Products, 1)
	assert.Len(t, res.Rejected, 1)

	products, err := db.ListProducts()
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "HN-8", products[0].Code)
}
