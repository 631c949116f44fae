// Package channel adapts the messaging gateway: it decodes inbound message
// events and issues outbound text sends.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"message-relay/internal/integrations/httpjson"
)

const sendPath = "/messages"

type sendRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

// TokenSource supplies an optional bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("channel: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: httpjson.NewClient(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendMessage sends text to the channel address to.
func (c *Client) SendMessage(ctx context.Context, to, text string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("channel: recipient is required")
	}
	req, err := httpjson.NewRequest(ctx, http.MethodPost, c.baseURL+sendPath, sendRequest{ChatID: to, Text: text})
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("channel: resolve token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if _, err := httpjson.Do(c.httpClient, req); err != nil {
		return fmt.Errorf("channel: send message: %w", err)
	}
	return nil
}
