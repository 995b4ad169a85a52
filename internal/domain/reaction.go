package domain

import "time"

// Reaction is unique per (message, user, emoji); the storage layer
// enforces the compound key so concurrent toggles resolve
// deterministically. ConversationID is denormalized from the message so
// per-conversation reaction history needs no join.
type Reaction struct {
	MessageID      string    `bson:"message_id" json:"message_id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	Emoji          string    `bson:"emoji" json:"emoji"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// ReadReceipt is unique per (message, user). ReadAt is overwritten on
// repeat marks; receipts are never deleted.
type ReadReceipt struct {
	MessageID string    `bson:"message_id" json:"message_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	ReadAt    time.Time `bson:"read_at" json:"read_at"`
}
