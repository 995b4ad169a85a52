package domain

import "time"

// Role of a viewer as resolved by the identity layer.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Message is the stored form of a chat message. OriginalContent is the
// verbatim sender text and is never overwritten by sanitization;
// SanitizedContent is the organization-safe variant. Rows are soft
// deleted only.
type Message struct {
	ID               string     `bson:"_id" json:"id"`
	ConversationID   string     `bson:"conversation_id" json:"conversation_id"`
	SenderID         string     `bson:"sender_id" json:"sender_id"`
	OriginalContent  string     `bson:"original_content" json:"original_content"`
	SanitizedContent string     `bson:"sanitized_content" json:"sanitized_content"`
	AppliedTone      string     `bson:"applied_tone,omitempty" json:"applied_tone,omitempty"`
	MediaRef         string     `bson:"media_ref,omitempty" json:"media_ref,omitempty"`
	IsEdited         bool       `bson:"is_edited" json:"is_edited"`
	EditedAt         *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	IsDeleted        bool       `bson:"is_deleted" json:"is_deleted"`
	DeletedAt        *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// Age of the message relative to now.
func (m *Message) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}
