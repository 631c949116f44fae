package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestSendMessage_PostsText(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, sendPath, r.URL.Path)
		require.Equal(t, "Bearer gw", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithTokenSource(staticToken("gw")))
	require.NoError(t, err)
	require.NoError(t, c.SendMessage(context.Background(), "917229091491@c.us", "Hello Asha!"))
	require.Equal(t, sendRequest{ChatID: "917229091491@c.us", Text: "Hello Asha!"}, got)
}

func TestSendMessage_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "session closed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	require.ErrorContains(t, c.SendMessage(context.Background(), " ", "x"), "recipient")
	require.ErrorContains(t, c.SendMessage(context.Background(), "a@c.us", "x"), "session closed")
}
