// Package store declares the persistence collaborators the chat core
// depends on. Implementations live in subpackages; the core never
// touches a storage engine directly.
package store

import (
	"context"
	"time"

	"github.com/corpchat/corpchat/internal/domain"
)

// Messages persists chat messages. Mutations are conditional: the
// update applies only while the row is still active, so concurrent
// edit/delete attempts cannot produce lost updates. Implementations
// report apperr.ErrNotFound for absent ids and apperr.ErrAlreadyDeleted
// for mutations raced out by a delete.
type Messages interface {
	Insert(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, id string) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*domain.Message, error)

	// ApplyEdit updates both content variants iff the message is still
	// active, returning the updated row.
	ApplyEdit(ctx context.Context, id, original, sanitized, tone string, editedAt time.Time) (*domain.Message, error)

	// SoftDelete marks the message deleted iff it is still active,
	// returning the updated row. Content is retained for audit.
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) (*domain.Message, error)
}

// Conversations persists conversation state.
type Conversations interface {
	// Ensure creates the conversation if it does not exist yet (lazy
	// creation on first message) and returns the stored row.
	Ensure(ctx context.Context, c *domain.Conversation) (*domain.Conversation, error)
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// Reactions persists reaction tuples under a unique
// (message_id, user_id, emoji) constraint.
type Reactions interface {
	// Add inserts the tuple; inserted is false when the tuple already
	// existed (a racing duplicate is a no-op).
	Add(ctx context.Context, r *domain.Reaction) (inserted bool, err error)
	// Remove deletes the tuple; removed is false when it was absent.
	Remove(ctx context.Context, messageID, userID, emoji string) (removed bool, err error)
	Exists(ctx context.Context, messageID, userID, emoji string) (bool, error)
	CountsByEmoji(ctx context.Context, messageID string) (map[string]int, error)
	// ListByMessage returns reactions in insertion-time order.
	ListByMessage(ctx context.Context, messageID string) ([]*domain.Reaction, error)
	// ListByUserInConversation returns the user's reactions newest first.
	ListByUserInConversation(ctx context.Context, userID, conversationID string) ([]*domain.Reaction, error)
	RemoveAllForMessage(ctx context.Context, messageID string) (int64, error)
}

// Receipts persists read receipts under a unique (message_id, user_id)
// constraint. Receipts are upserted, never deleted.
type Receipts interface {
	Upsert(ctx context.Context, messageID, userID string, readAt time.Time) (*domain.ReadReceipt, error)
	// ListByMessage returns receipts ordered by read time ascending.
	ListByMessage(ctx context.Context, messageID string) ([]*domain.ReadReceipt, error)
	// ReadSet reports which of messageIDs the given user has read.
	ReadSet(ctx context.Context, messageIDs []string, userID string) (map[string]bool, error)
	// Counts reports total reads per message, zero-filled for ids with
	// no receipts.
	Counts(ctx context.Context, messageIDs []string) (map[string]int, error)
	// CountForUsers counts receipts on the message from the given users.
	CountForUsers(ctx context.Context, messageID string, userIDs []string) (int64, error)
}
