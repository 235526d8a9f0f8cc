// Package advisor is an HTTP client for an external advisory model that
// ranks candidate mitigation actions.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-risk-service/internal/observability"
	"github.com/couchcryptid/hazard-risk-service/internal/recommend"
)

const rankPath = "/v1/rank"

// Client implements recommend.Advisor over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an advisory model client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Rank posts the candidates and returns the action ids in the order the
// model prefers them.
func (c *Client) Rank(ctx context.Context, req recommend.AdviceRequest) ([]string, error) {
	start := time.Now()
	ids, err := c.doRequest(ctx, req)
	c.metrics.AdvisorDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.AdvisorRequests.WithLabelValues("error").Inc()
		c.logger.Warn("advisor request failed", "error", err, "location_id", req.Risk.LocationID)
		return nil, err
	}
	c.metrics.AdvisorRequests.WithLabelValues("success").Inc()
	c.logger.Debug("advisor ranked actions", "location_id", req.Risk.LocationID, "candidates", len(req.Candidates), "ranked", len(ids))
	return ids, nil
}

func (c *Client) doRequest(ctx context.Context, advice recommend.AdviceRequest) ([]string, error) {
	body, err := json.Marshal(advice)
	if err != nil {
		return nil, fmt.Errorf("encode advice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rankPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("advisor API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ranked response
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return ranked.ActionIDs, nil
}

// Advisory model API response.

type response struct {
	ActionIDs []string `json:"action_ids"`
}
