package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"message-relay/internal/domain"
	"message-relay/internal/integrations/channel"
	"message-relay/internal/usecase"
)

const defaultRetries = 3

type handlers struct {
	events   Submitter
	sender   Sender
	webhooks WebhookConfigStore
	log      *slog.Logger
	now      func() time.Time
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type webhookConfigRequest struct {
	URL     string `json:"url"`
	Secret  string `json:"secret"`
	Retries *int   `json:"retries"`
}

type webhookConfigResponse struct {
	URL       string `json:"url"`
	HasSecret bool   `json:"hasSecret"`
	Retries   int    `json:"retries"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *handlers) register(e *echo.Echo) {
	e.GET("/ping", h.ping)
	e.POST("/channel/events", h.inbound)
	e.POST("/messages/send", h.send)
	e.GET("/webhooks/active", h.getWebhook)
	e.PUT("/webhooks/active", h.putWebhook)
}

func (h *handlers) ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (h *handlers) inbound(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	msg, err := channel.DecodeEvent(body, h.now())
	if err != nil {
		h.log.Warn("rejected inbound event", "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.events.Submit(msg); err != nil {
		if errors.Is(err, usecase.ErrPoolClosed) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, statusResponse{Status: "accepted"})
}

func (h *handlers) send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "to and text are required")
	}
	if err := h.sender.SendMessage(c.Request().Context(), req.To, req.Text); err != nil {
		h.log.Error("outbound send failed", "to", req.To, "err", err)
		return echo.NewHTTPError(http.StatusBadGateway, "send failed")
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "sent"})
}

func (h *handlers) getWebhook(c echo.Context) error {
	cfg, err := h.webhooks.GetActiveWebhookConfig(c.Request().Context())
	if err != nil {
		h.log.Error("load webhook config failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "load webhook config")
	}
	if cfg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no active webhook configuration")
	}
	return c.JSON(http.StatusOK, redact(*cfg))
}

func (h *handlers) putWebhook(c echo.Context) error {
	var req webhookConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	cfg, err := req.config()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.webhooks.PutActiveWebhookConfig(c.Request().Context(), cfg); err != nil {
		h.log.Error("save webhook config failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "save webhook config")
	}
	h.log.Info("active webhook updated", "url", cfg.URL, "retries", cfg.Retries)
	return c.JSON(http.StatusOK, redact(cfg))
}

func (r webhookConfigRequest) config() (domain.WebhookConfig, error) {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.WebhookConfig{}, errors.New("url must be an absolute http(s) URL")
	}
	if r.Secret == "" {
		return domain.WebhookConfig{}, errors.New("secret is required")
	}
	retries := defaultRetries
	if r.Retries != nil {
		retries = *r.Retries
	}
	if retries < 1 {
		return domain.WebhookConfig{}, errors.New("retries must be at least 1")
	}
	return domain.WebhookConfig{URL: u.String(), Secret: r.Secret, Retries: retries}, nil
}

func redact(cfg domain.WebhookConfig) webhookConfigResponse {
	return webhookConfigResponse{URL: cfg.URL, HasSecret: cfg.Secret != "", Retries: cfg.Retries}
}
