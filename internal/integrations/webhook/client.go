// Package webhook delivers signed JSON payloads to the downstream sink.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"message-relay/internal/integrations/httpjson"
)

const SignatureHeader = "X-Hub-Signature-256"

type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpjson.NewClient(0)
	}
	return &Client{httpClient: httpClient}
}

// Post sends body as-is with the given signature. Any non-2xx response is
// returned as *httpjson.StatusError.
func (c *Client) Post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	if _, err := httpjson.Do(c.httpClient, req); err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	return nil
}
