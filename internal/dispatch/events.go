// Package dispatch fans state-change events out to subscribed
// participants. Delivery is at-least-once, best effort; emission order
// is preserved per sender only.
package dispatch

import (
	"time"

	"github.com/corpchat/corpchat/internal/visibility"
)

// EventKind enumerates every event the core emits. Payload shapes are
// fixed per kind.
type EventKind string

const (
	EventMessageCreated     EventKind = "message-created"
	EventMessageEdited      EventKind = "message-edited"
	EventMessageDeleted     EventKind = "message-deleted"
	EventReactionChanged    EventKind = "reaction-changed"
	EventReadReceiptUpdated EventKind = "read-receipt-updated"
	EventTypingStateChanged EventKind = "typing-state-changed"
	EventPresenceChanged    EventKind = "presence-changed"

	// EventError is sent only to the requester whose operation failed.
	EventError EventKind = "error"
)

// Event pairs a kind with its payload for transport.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
}

type MessageCreatedPayload struct {
	Message visibility.View `json:"message"`
}

type MessageEditedPayload struct {
	MessageID      string     `json:"message_id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	EditedAt       *time.Time `json:"edited_at"`
}

type MessageDeletedPayload struct {
	MessageID      string     `json:"message_id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	DeletedAt      *time.Time `json:"deleted_at"`
}

type ReactionChangedPayload struct {
	MessageID      string         `json:"message_id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Emoji          string         `json:"emoji"`
	Action         string         `json:"action"`
	Counts         map[string]int `json:"counts"`
}

type ReadReceiptUpdatedPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type TypingStateChangedPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	IsTyping       bool   `json:"is_typing"`
}

type PresenceChangedPayload struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcaster is the transport collaborator. Implementations must not
// block the caller; a slow subscriber is dropped, not waited on.
type Broadcaster interface {
	ToRoom(room string, ev Event)
	ToUser(userID string, ev Event)
}
