package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"message-relay/internal/domain"
)

// ErrInvalidEvent reports an inbound event missing required fields.
var ErrInvalidEvent = errors.New("channel: invalid inbound event")

// Event is the message shape posted by the gateway for every received message.
type Event struct {
	ID struct {
		ID string `json:"id"`
	} `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	FromMe    bool   `json:"fromMe"`
}

// DecodeEvent parses raw into an InboundMessage. now stamps events that carry
// no timestamp of their own.
func DecodeEvent(raw []byte, now time.Time) (domain.InboundMessage, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev.Message(now)
}

// Message validates the event and converts it.
func (ev Event) Message(now time.Time) (domain.InboundMessage, error) {
	if strings.TrimSpace(ev.ID.ID) == "" {
		return domain.InboundMessage{}, fmt.Errorf("%w: id.id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.From) == "" {
		return domain.InboundMessage{}, fmt.Errorf("%w: from is required", ErrInvalidEvent)
	}
	if ev.FromMe {
		return domain.InboundMessage{}, fmt.Errorf("%w: outgoing message echoed back", ErrInvalidEvent)
	}
	received := now.UTC()
	if ev.Timestamp > 0 {
		received = time.Unix(ev.Timestamp, 0).UTC()
	}
	return domain.InboundMessage{
		ChannelMessageID: ev.ID.ID,
		From:             ev.From,
		Body:             ev.Body,
		ReceivedAt:       received,
	}, nil
}
