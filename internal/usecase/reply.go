package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"message-relay/internal/domain"
)

const (
	greetingTrigger = "hi"
	fallbackName    = "there"
)

type Sender interface {
	SendMessage(ctx context.Context, to, text string) error
}

// ReplyTrigger answers greetings through the channel provider.
type ReplyTrigger struct {
	sender Sender
	log    *slog.Logger
}

func NewReplyTrigger(sender Sender, logger *slog.Logger) (*ReplyTrigger, error) {
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	return &ReplyTrigger{sender: sender, log: loggerOrDefault(logger)}, nil
}

// MaybeReply sends a personalized greeting when the body is exactly "hi",
// ignoring case. Send failures are logged only.
func (t *ReplyTrigger) MaybeReply(ctx context.Context, msg domain.InboundMessage, user domain.UserIdentity) {
	if !strings.EqualFold(msg.Body, greetingTrigger) {
		return
	}
	text := greeting(user.DisplayName)
	if err := t.sender.SendMessage(ctx, msg.From, text); err != nil {
		t.log.Error("reply send failed", "to", msg.From, "err", err)
		return
	}
	t.log.Info("reply sent", "to", msg.From)
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallbackName
	}
	return "Hello " + name + "!"
}
