package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/review"
)

// apiClient talks to a running ledgersift server from the CLI.
type apiClient struct {
	httpClient *http.Client
	baseURL    string
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// uploadFile posts a local file as a multipart upload and returns the
// initial batch snapshot.
func (c *apiClient) uploadFile(ctx context.Context, path string) (*model.UploadBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var batch model.UploadBatch
	if err := c.do(req, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// getBatch fetches one progress snapshot.
func (c *apiClient) getBatch(ctx context.Context, id int64) (*model.UploadBatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/batches/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	var batch model.UploadBatch
	if err := c.do(req, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// getTaxonomy fetches the current categories.
func (c *apiClient) getTaxonomy(ctx context.Context) ([]model.Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/taxonomy", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Categories []model.Category `json:"categories"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// applyCorrections posts corrections and returns how many were applied.
func (c *apiClient) applyCorrections(ctx context.Context, corrections []review.Correction) (int, error) {
	payload, err := json.Marshal(corrections)
	if err != nil {
		return 0, fmt.Errorf("failed to encode corrections: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/corrections", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Applied int `json:"applied"`
	}
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.Applied, nil
}

// export streams the transaction export into w.
func (c *apiClient) export(ctx context.Context, format string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/transactions/export?format="+format, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
