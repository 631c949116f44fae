package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"message-relay/internal/domain"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Submitter schedules inbound events for background processing.
type Submitter interface {
	Submit(msg domain.InboundMessage) error
}

type Sender interface {
	SendMessage(ctx context.Context, to, text string) error
}

type WebhookConfigStore interface {
	GetActiveWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error)
	PutActiveWebhookConfig(ctx context.Context, cfg domain.WebhookConfig) error
}

type Server struct {
	echo *echo.Echo
	addr string
	log  *slog.Logger
}

func NewServer(addr string, events Submitter, sender Sender, webhooks WebhookConfigStore, logger *slog.Logger) (*Server, error) {
	switch {
	case events == nil:
		return nil, errors.New("server: event submitter must not be nil")
	case sender == nil:
		return nil, errors.New("server: sender must not be nil")
	case webhooks == nil:
		return nil, errors.New("server: webhook store must not be nil")
	}
	if addr == "" {
		addr = ":8080"
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.BodyLimit("1M"))

	h := &handlers{events: events, sender: sender, webhooks: webhooks, log: logger, now: time.Now}
	h.register(e)

	return &Server{echo: e, addr: addr, log: logger}, nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
