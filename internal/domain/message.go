package domain

import (
	"strings"
	"time"
)

// GroupSuffix marks channel addresses that belong to a group chat.
const GroupSuffix = "@g.us"

// InboundMessage is a message event delivered by the channel provider.
type InboundMessage struct {
	ChannelMessageID string
	From             string
	Body             string
	ReceivedAt       time.Time
}

// UserIdentity is a directory record matched by mobile number.
type UserIdentity struct {
	UserID      ID
	DisplayName string
}

// PersistedMessage is the stored form of an inbound message.
type PersistedMessage struct {
	MessageID      string
	WhatsAppID     string
	FromNumber     string
	Body           string
	IsFromMe       bool
	ConversationID ID
	UserID         ID
	CreatedAt      time.Time
}

// IsGroup reports whether the message was sent to a group address.
func (m PersistedMessage) IsGroup() bool {
	return strings.Contains(m.FromNumber, GroupSuffix)
}
