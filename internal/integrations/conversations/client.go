// Package conversations talks to the agent service that owns conversation records.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"message-relay/internal/domain"
	"message-relay/internal/integrations/httpjson"
)

const conversationsPath = "/api/conversations"

type createRequest struct {
	UserID domain.ID `json:"user_id"`
	Agent  string    `json:"agent"`
	Title  string    `json:"title"`
}

type listResponse struct {
	Data []domain.Conversation `json:"data"`
}

type createResponse struct {
	Data domain.Conversation `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("conversations: base URL must not be empty")
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

// List returns up to limit conversations for userID.
func (c *Client) List(ctx context.Context, userID domain.ID, limit int) ([]domain.Conversation, error) {
	q := url.Values{}
	q.Set("user_id", userID.String())
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := httpjson.NewRequest(ctx, http.MethodGet, c.baseURL+conversationsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}
	var out listResponse
	if err := httpjson.DoJSON(c.httpClient, req, &out); err != nil {
		return nil, fmt.Errorf("conversations: list: %w", err)
	}
	return out.Data, nil
}

// Create opens a new conversation for userID.
func (c *Client) Create(ctx context.Context, userID domain.ID, agent, title string) (domain.Conversation, error) {
	req, err := httpjson.NewRequest(ctx, http.MethodPost, c.baseURL+conversationsPath, createRequest{
		UserID: userID,
		Agent:  agent,
		Title:  title,
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("conversations: %w", err)
	}
	var out createResponse
	if err := httpjson.DoJSON(c.httpClient, req, &out); err != nil {
		return domain.Conversation{}, fmt.Errorf("conversations: create: %w", err)
	}
	if out.Data.ID == "" {
		return domain.Conversation{}, errors.New("conversations: create: response has no conversation id")
	}
	return out.Data, nil
}
