// Package vectorindex implements ports.VectorIndex for Pinecone and Qdrant
// over their REST APIs, plus an in-process index loaded from a JSON file for
// development and tests.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-dossier/internal/ports"
)

// DefaultNamespace is the configured name of the index's unnamed partition.
// Searching it sends no namespace to the backend.
const DefaultNamespace = "default"

// maxErrorBody bounds how much of an error response is kept in the error.
const maxErrorBody = 512

func isDefaultNamespace(ns string) bool {
	return ns == "" || ns == DefaultNamespace
}

// restClient is the JSON-over-HTTP plumbing shared by the REST adapters.
type restClient struct {
	index   string
	headers map[string]string
	client  *http.Client
}

// do sends body (when non-nil) as JSON and decodes a 2xx response into out
// (when non-nil). Failures are returned as *ports.IndexError.
func (c *restClient) do(ctx context.Context, op, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return ports.NewIndexError(c.index, op, 0, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return ports.NewIndexError(c.index, op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.NewIndexError(c.index, op, 0, transportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ports.NewIndexError(c.index, op, resp.StatusCode,
			fmt.Errorf("%w: %s %s: %s", statusError(resp.StatusCode), method, resp.Status,
				strings.TrimSpace(string(snippet))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ports.NewIndexError(c.index, op, resp.StatusCode,
			fmt.Errorf("%w: decode response: %w", ports.ErrInvalidResponse, err))
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ports.ErrAuthenticationFailed
	case code == http.StatusTooManyRequests:
		return ports.ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ports.ErrTimeout
	case code >= 500:
		return ports.ErrServiceUnavailable
	default:
		return ports.ErrInvalidResponse
	}
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
}

// scorePtr returns a pointer to a copy of v.
func scorePtr(v float64) *float64 { return &v }
