package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"quoteflow/internal"
	"quoteflow/internal/config"
)

var ErrMissingToken = errors.New("missing CATALOG_API_TOKEN")

// Client pulls the product catalog from the catalog storage service. Rows
// that fail validation are logged and skipped so one bad product does not
// block a sync.
type Client struct {
	cfg         config.Config
	httpClient  *http.Client
	limiter     *RateLimiter
	backoffBase time.Duration
	log         zerolog.Logger
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Products []map[string]any `json:"products"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:     NewRateLimiter(cfg.CatalogRateLimitRPS),
		backoffBase: 250 * time.Millisecond,
		log:         log,
	}
}

func (c *Client) FetchAll(ctx context.Context) ([]internal.CatalogProduct, error) {
	all := make([]internal.CatalogProduct, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "products/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode catalog page: %w", err)
		}

		for _, raw := range payload.Products {
			product, err := ProductFromRecord(raw)
			if err != nil {
				c.log.Warn().Err(err).Msg("skipping catalog product")
				continue
			}
			all = append(all, product)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Products) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CatalogAPIToken) == "" {
		return nil, ErrMissingToken
	}

	baseURL := strings.TrimRight(c.cfg.CatalogAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	maxRetries := c.cfg.CatalogMaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := retry.NewExponential(c.backoffBase)
	backoff = retry.WithJitter(c.backoffBase/2, backoff)
	backoff = retry.WithMaxRetries(uint64(maxRetries), backoff)

	var data []byte
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) {
				c.log.Debug().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("catalog request retry")
				return retry.RetryableError(fmt.Errorf("catalog status %d", resp.StatusCode))
			}
			return fmt.Errorf("catalog api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return err
		}
		if !apiResp.Success {
			return fmt.Errorf("catalog api unsuccessful: %s", string(apiResp.Errors))
		}
		data = apiResp.Data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
