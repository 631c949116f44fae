package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"message-relay/internal/domain"
)

const (
	signaturePrefix = "sha256="
	isoMillis       = "2006-01-02T15:04:05.000Z"
	maxBackoff      = time.Minute
)

type WebhookStore interface {
	GetMessage(ctx context.Context, messageID string) (domain.PersistedMessage, error)
	GetActiveWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error)
}

type WebhookPoster interface {
	Post(ctx context.Context, url string, body []byte, signature string) error
}

// Dispatcher forwards recorded messages to the active webhook.
type Dispatcher struct {
	store   WebhookStore
	poster  WebhookPoster
	backoff time.Duration
	log     *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type DispatcherOption func(*Dispatcher)

// WithBackoff sets the delay before the second attempt; it doubles for each
// subsequent attempt. Zero retries immediately.
func WithBackoff(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) {
		x.backoff = d
	}
}

func NewDispatcher(store WebhookStore, poster WebhookPoster, logger *slog.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("usecase: webhook store must not be nil")
	}
	if poster == nil {
		return nil, errors.New("usecase: webhook poster must not be nil")
	}
	d := &Dispatcher{
		store:  store,
		poster: poster,
		log:    loggerOrDefault(logger),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch delivers message messageID to the active webhook. Every failure is
// terminal and logged; nothing is returned to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, messageID string) {
	cfg, err := d.store.GetActiveWebhookConfig(ctx)
	if err != nil {
		d.log.Error("load webhook config failed", "message_id", messageID, "err", err)
		return
	}
	if cfg == nil {
		d.log.Warn("no active webhook configuration", "message_id", messageID)
		return
	}
	if cfg.Retries <= 0 {
		d.log.Warn("webhook configuration allows no attempts", "message_id", messageID, "url", cfg.URL, "retries", cfg.Retries)
		return
	}

	msg, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		d.log.Error("load message for webhook failed", "message_id", messageID, "err", err)
		return
	}

	body, err := json.Marshal(BuildPayload(msg, d.now()))
	if err != nil {
		d.log.Error("encode webhook payload failed", "message_id", messageID, "err", err)
		return
	}
	// The same bytes and signature are reused for every attempt.
	signature := Sign(cfg.Secret, body)

	attempts := cfg.Retries
	for attempt := 1; attempt <= attempts; attempt++ {
		err := d.poster.Post(ctx, cfg.URL, body, signature)
		if err == nil {
			d.log.Info("webhook delivered", "url", cfg.URL, "message_id", messageID, "attempt", attempt)
			return
		}
		d.log.Error("webhook attempt failed", "url", cfg.URL, "message_id", messageID, "attempt", attempt, "err", err)

		if attempt < attempts && d.backoff > 0 {
			if err := d.sleep(ctx, backoffFor(d.backoff, attempt)); err != nil {
				d.log.Error("webhook retries abandoned", "url", cfg.URL, "message_id", messageID, "err", err)
				return
			}
		}
	}
	d.log.Error("webhook delivery exhausted", "url", cfg.URL, "message_id", messageID, "attempts", attempts)
}

// BuildPayload derives the webhook body from a stored message.
func BuildPayload(msg domain.PersistedMessage, now time.Time) domain.WebhookPayload {
	p := domain.WebhookPayload{
		SenderID:  msg.FromNumber,
		Content:   msg.Body,
		Timestamp: now.UTC().Format(isoMillis),
	}
	if msg.IsGroup() {
		group := msg.FromNumber
		p.GroupID = &group
	}
	return p
}

// Sign computes the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func backoffFor(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
