package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"message-relay/internal/domain"
)

const (
	defaultAgent = "database"
	defaultTitle = "WhatsApp Conversation"
)

type ConversationService interface {
	List(ctx context.Context, userID domain.ID, limit int) ([]domain.Conversation, error)
	Create(ctx context.Context, userID domain.ID, agent, title string) (domain.Conversation, error)
}

// ConversationResolver finds the current conversation for a user or opens one.
// Concurrent resolutions for the same user within this process share one
// lookup-or-create; the remote service remains responsible for deduplication
// across processes.
type ConversationResolver struct {
	svc    ConversationService
	agent  string
	title  string
	log    *slog.Logger
	flight singleflight.Group
}

func NewConversationResolver(svc ConversationService, agent, title string, logger *slog.Logger) (*ConversationResolver, error) {
	if svc == nil {
		return nil, errors.New("usecase: conversation service must not be nil")
	}
	agent = strings.TrimSpace(agent)
	if agent == "" {
		agent = defaultAgent
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	return &ConversationResolver{svc: svc, agent: agent, title: title, log: loggerOrDefault(logger)}, nil
}

func (r *ConversationResolver) Resolve(ctx context.Context, userID domain.ID) (domain.Conversation, error) {
	v, err, _ := r.flight.Do(userID.String(), func() (any, error) {
		return r.lookupOrCreate(ctx, userID)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return v.(domain.Conversation), nil
}

func (r *ConversationResolver) lookupOrCreate(ctx context.Context, userID domain.ID) (domain.Conversation, error) {
	existing, err := r.svc.List(ctx, userID, 1)
	if err != nil {
		return domain.Conversation{}, newError(ErrorUpstream, "conversation_lookup_error", err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	conv, err := r.svc.Create(ctx, userID, r.agent, r.title)
	if err != nil {
		return domain.Conversation{}, newError(ErrorUpstream, "conversation_create_error", err)
	}
	r.log.Info("conversation created", "user_id", userID.String(), "conversation_id", conv.ID.String())
	return conv, nil
}
