package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteflow/internal/config"
	"quoteflow/internal/logging"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg := config.Config{
		CatalogAPIToken:     "test",
		CatalogAPIBaseURL:   "https://example.test/api/v1",
		CatalogRateLimitRPS: 1000,
		CatalogTimeoutMs:    1000,
		CatalogMaxRetries:   3,
	}
	client := NewClient(cfg, logging.Nop())
	client.backoffBase = time.Millisecond
	client.httpClient = &http.Client{Transport: rt}
	return client
}

func TestFetchAllWithRetry(t *testing.T) {
	attempt := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/api/v1/products/scroll", r.URL.Path)
		require.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		attempt++
		switch attempt {
		case 1:
			return jsonResponse(http.StatusInternalServerError, map[string]any{"error": "boom"}), nil
		case 2:
			assert.Empty(t, r.URL.Query().Get("scrollId"))
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"products": []map[string]any{
					{"name": "Widget-X Pro", "code": "WX-100", "brand": "Acme", "unitPrice": "12,50"},
					{"name": "", "code": "BROKEN"},
				},
				"scrollId": "abc",
			}}), nil
		default:
			assert.Equal(t, "abc", r.URL.Query().Get("scrollId"))
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"products": []map[string]any{{"name": "Steel Bolt", "code": "SB-2", "taxRate": 0.2}},
				"scrollId": nil,
			}}), nil
		}
	})

	products, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 3, attempt)
	assert.Equal(t, 12.5, products[0].UnitPrice)
	assert.Equal(t, "SB-2", products[1].Code)
}

func TestFetchAllNonRetryableStatus(t *testing.T) {
	attempt := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		attempt++
		return jsonResponse(http.StatusUnauthorized, map[string]any{"error": "nope"}), nil
	})

	_, err := client.FetchAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
	assert.Equal(t, 1, attempt)
}

func TestFetchAllGivesUpAfterRetries(t *testing.T) {
	attempt := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		attempt++
		return jsonResponse(http.StatusServiceUnavailable, nil), nil
	})

	_, err := client.FetchAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, attempt)
}

func TestFetchAllRequiresToken(t *testing.T) {
	client := NewClient(config.Config{}, logging.Nop())
	_, err := client.FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrMissingToken)
}
