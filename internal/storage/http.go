package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// HTTPFetcher handles communication with the document service API
type HTTPFetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPFetcher creates a new document service client
func NewHTTPFetcher(baseURL, apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// serviceError is the error body returned by the document service
type serviceError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Fetch downloads the raw notebook of a document version
func (c *HTTPFetcher) Fetch(ctx context.Context, documentVersionID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/v1/documents/%s/content", c.baseURL, url.PathEscape(documentVersionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/x-ipynb+json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Trace().
		Str("documentVersionId", documentVersionID).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Document service response")

	// Handle error status codes
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("document %s: %w", documentVersionID, plagiarism.ErrNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp serviceError
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("API error: %s - %s", errResp.Error, errResp.Message)
	}

	return body, nil
}
