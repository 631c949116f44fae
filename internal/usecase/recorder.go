package usecase

import (
	"context"
	"errors"

	"message-relay/internal/domain"
)

type MessageStore interface {
	SaveMessage(ctx context.Context, msg domain.PersistedMessage) (string, error)
}

// Recorder persists inbound messages linked to their user and conversation.
type Recorder struct {
	store MessageStore
}

func NewRecorder(store MessageStore) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	return &Recorder{store: store}, nil
}

// Record inserts msg once and returns the datastore-assigned message id.
func (r *Recorder) Record(ctx context.Context, msg domain.InboundMessage, user domain.UserIdentity, conv domain.Conversation) (string, error) {
	id, err := r.store.SaveMessage(ctx, domain.PersistedMessage{
		WhatsAppID:     msg.ChannelMessageID,
		FromNumber:     msg.From,
		Body:           msg.Body,
		IsFromMe:       false,
		ConversationID: conv.ID,
		UserID:         user.UserID,
		CreatedAt:      msg.ReceivedAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return "", newError(ErrorDuplicate, "message_already_recorded", err)
		}
		return "", newError(ErrorInternal, "message_save_error", err)
	}
	return id, nil
}
