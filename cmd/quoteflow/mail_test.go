package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal"
	"quoteflow/internal/storage"
)

func seedDB(t *testing.T) (string, int, int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertProducts([]internal.CatalogProduct{{Name: "Hex Nut", Code: "HN-8"}}))
	classified, err := db.UpsertEmail("gmail", "m1", "Quote", "buyer@example.com", "2026-01-02T00:00:00Z", "h1", "/tmp/m1.eml", storage.StatusClassified)
	require.NoError(t, err)
	require.NoError(t, db.SaveClassification(classified.ID, internal.ClassificationResult{
		EmailID: "m1", IsQuoteRequest: true, ConfidenceTier: internal.TierMedium, Score: 9,
	}))
	require.NoError(t, db.InsertRun("trace-1", classified.ID, map[string]float64{"totalMs": 1}, map[string]int{"products": 0}))
	fetched, err := db.UpsertEmail("gmail", "m2", "Hello", "a@example.com", "2026-01-03T00:00:00Z", "h2", "/tmp/m2.eml", storage.StatusFetched)
	require.NoError(t, err)
	return path, classified.ID, fetched.ID
}

func TestMailShowCommand(t *testing.T) {
	path, classifiedID, fetchedID := seedDB(t)
	t.Setenv("DB_PATH", path)

	run := func(id int) emailReport {
		cmd := mailShowCmd()
		out := bytes.NewBuffer(nil)
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--id", strconv.Itoa(id)})
		require.NoError(t, cmd.Execute())
		var report emailReport
		require.NoError(t, json.Unmarshal(out.Bytes(), &report))
		return report
	}

	report := run(classifiedID)
	assert.Equal(t, "m1", report.Email.MessageID)
	require.NotNil(t, report.Classification)
	assert.Equal(t, internal.TierMedium, report.Classification.ConfidenceTier)
	assert.Equal(t, 1, report.Runs)

	report = run(fetchedID)
	assert.Equal(t, storage.StatusFetched, report.Email.Status)
	assert.Nil(t, report.Classification)
	assert.Zero(t, report.Runs)
}

func TestLoadEmailReportMissing(t *testing.T) {
	path, _, _ := seedDB(t)
	db, err := storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = loadEmailReport(db, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalogDeleteCommand(t *testing.T) {
	path, _, _ := seedDB(t)
	t.Setenv("DB_PATH", path)

	del := func() error {
		cmd := catalogDeleteCmd()
		cmd.SetOut(bytes.NewBuffer(nil))
		cmd.SetErr(bytes.NewBuffer(nil))
		cmd.SetArgs([]string{"--code", "HN-8"})
		return cmd.Execute()
	}
	require.NoError(t, del())
	assert.ErrorIs(t, del(), storage.ErrNotFound)

	db, err := storage.Open(path)
	require.NoError(t, err)
	defer db.Close()
	products, err := db.ListProducts()
	require.NoError(t, err)
	assert.Empty(t, products)
}
