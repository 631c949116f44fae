// Package directory queries the admin user directory for points of contact.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"message-relay/internal/domain"
	"message-relay/internal/integrations/httpjson"
)

const (
	listPath       = "/v1/admin-service/poc-details/list"
	mobileField    = "mobile_number"
	equalsOperator = "eq"
)

type filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type listRequest struct {
	Filter []filter `json:"filter"`
}

type poc struct {
	ID   domain.ID `json:"id"`
	Name string    `json:"name"`
}

type listResponse struct {
	Data struct {
		POCs []poc `json:"pocs"`
	} `json:"data"`
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
		return nil, errors.New("directory: base URL must not be empty")
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

// FindByMobile returns every point of contact registered for mobile, in the
// order the directory lists them.
func (c *Client) FindByMobile(ctx context.Context, mobile string) ([]domain.UserIdentity, error) {
	url := c.baseURL + listPath
	req, err := httpjson.NewRequest(ctx, http.MethodPost, url, listRequest{
		Filter: []filter{{Field: mobileField, Operator: equalsOperator, Value: mobile}},
	})
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("directory: resolve token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	var out listResponse
	if err := httpjson.DoJSON(c.httpClient, req, &out); err != nil {
		return nil, fmt.Errorf("directory: list pocs: %w", err)
	}

	users := make([]domain.UserIdentity, 0, len(out.Data.POCs))
	for _, p := range out.Data.POCs {
		users = append(users, domain.UserIdentity{UserID: p.ID, DisplayName: p.Name})
	}
	return users, nil
}
