package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal"
)

func TestClassifyCommandWithCatalogFile(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("- name: Widget-X Pro\n  code: WX-100\n  brand: Acme\n"), 0o644))
	t.Setenv("DB_PATH", filepath.Join(dir, "unused.db"))

	cmd := classifyCmd()
	out := bytes.NewBuffer(nil)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--subject", "Quote request", "--body", "Please quote 20 pcs of WX-100 from Acme", "--catalog", catalogPath})
	require.NoError(t, cmd.Execute())

	var res internal.ClassificationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.IsQuoteRequest)
	assert.Equal(t, internal.TierHigh, res.ConfidenceTier)
	require.NotEmpty(t, res.DetectedProducts)
	assert.Equal(t, "WX-100", res.DetectedProducts[0].Product.Code)
	assert.NoFileExists(t, filepath.Join(dir, "unused.db"))
}

func TestClassifyCommandRequiresInput(t *testing.T) {
	cmd := classifyCmd()
	cmd.SetOut(bytes.NewBuffer(nil))
	cmd.SetErr(bytes.NewBuffer(nil))
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
