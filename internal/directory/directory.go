// Package directory looks up the set of known labelers from a labeler
// directory service.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL lists every labeler known to the blue.feeds directory.
const DefaultURL = "https://blue.mackuba.eu/xrpc/blue.feeds.mod.getLabellers"

// FetchError provides detailed error information for directory failures
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type listResponse struct {
	Labellers []struct {
		DID string `json:"did"`
	} `json:"labellers"`
}

// Client queries a directory endpoint
type Client struct {
	url       string
	client    *http.Client
	userAgent string
}

// NewClient creates a directory client. A nil httpClient gets a 30s timeout.
func NewClient(url string, httpClient *http.Client, userAgent string) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		url:       url,
		client:    httpClient,
		userAgent: userAgent,
	}
}

// ListLabelers returns the labeler DIDs in the order the directory lists
// them. Records without a did are skipped; duplicates are kept.
func (c *Client) ListLabelers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{
			URL:     c.url,
			Message: "failed to fetch directory",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:        c.url,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FetchError{
			URL:        c.url,
			StatusCode: resp.StatusCode,
			Message:    "malformed directory response",
			Err:        err,
		}
	}
	if body.Labellers == nil {
		return nil, &FetchError{
			URL:        c.url,
			StatusCode: resp.StatusCode,
			Message:    "directory response has no labellers field",
		}
	}

	dids := make([]string, 0, len(body.Labellers))
	for _, l := range body.Labellers {
		if l.DID == "" {
			continue
		}
		dids = append(dids, l.DID)
	}
	return dids, nil
}
