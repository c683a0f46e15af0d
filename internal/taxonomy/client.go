package taxonomy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

// Client implements the classification contract against a remote taxonomy
// service, for deployments where the engine runs out of process. It is a
// drop-in replacement for a local Engine in the pipeline.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a remote classification client. Timeout bounds each
// call and counts as one failed attempt toward the caller's retry budget.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type bulkRequest struct {
	Items []string `json:"items"`
}

type bulkResponse struct {
	HighConfidence []model.ClassificationResult `json:"high_confidence"`
	LowConfidence  []model.ClassificationResult `json:"low_confidence"`
}

type updateRequest struct {
	Category string `json:"category"`
	Example  string `json:"example"`
}

type updateResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Match classifies a single text remotely.
func (c *Client) Match(ctx context.Context, text string) (model.ClassificationResult, error) {
	var result model.ClassificationResult
	err := c.post(ctx, "/api/match", map[string]string{"text": text}, &result)
	if err != nil {
		return model.ClassificationResult{}, err
	}
	return result, nil
}

// MatchBulk classifies texts remotely and restores input order from the
// confidence partitions. Each partition preserves input order, so walking
// the inputs and consuming whichever partition head matches reassembles the
// original sequence.
func (c *Client) MatchBulk(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", common.ErrInvalidInput)
	}

	var resp bulkResponse
	if err := c.post(ctx, "/api/classify/bulk", bulkRequest{Items: texts}, &resp); err != nil {
		return nil, err
	}

	if len(resp.HighConfidence)+len(resp.LowConfidence) != len(texts) {
		return nil, fmt.Errorf("%w: service returned %d results for %d texts",
			common.ErrClassificationFailed, len(resp.HighConfidence)+len(resp.LowConfidence), len(texts))
	}

	results := make([]model.ClassificationResult, 0, len(texts))
	hi, lo := 0, 0
	for _, text := range texts {
		switch {
		case hi < len(resp.HighConfidence) && resp.HighConfidence[hi].Text == text:
			results = append(results, resp.HighConfidence[hi])
			hi++
		case lo < len(resp.LowConfidence) && resp.LowConfidence[lo].Text == text:
			results = append(results, resp.LowConfidence[lo])
			lo++
		default:
			return nil, fmt.Errorf("%w: result order mismatch at %q", common.ErrClassificationFailed, text)
		}
	}
	return results, nil
}

// Update appends a taxonomy example remotely and returns the category count.
func (c *Client) Update(ctx context.Context, categoryName, example string) (int, error) {
	var resp updateResponse
	err := c.post(ctx, "/api/taxonomy/update", updateRequest{Category: categoryName, Example: example}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: service returned %s", common.ErrClassificationFailed, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
