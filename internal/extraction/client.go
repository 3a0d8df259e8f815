// Package extraction calls the text-extraction endpoint that turns
// free-form pasted rosters into structured rows.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/config"
)

// Client talks to the extraction endpoint over HTTP. The endpoint is
// best effort: callers must treat its rows as untrusted input.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds an extraction client from config.
func NewClient(cfg config.ExtractionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Rows []models.Candidate `json:"rows"`
}

// ExtractCandidates sends raw text and returns the structured rows the
// endpoint recognized in it.
func (c *Client) ExtractCandidates(ctx context.Context, rawText string) ([]models.Candidate, error) {
	body, err := json.Marshal(extractRequest{Text: rawText})
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extraction endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction endpoint returned %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	return out.Rows, nil
}
