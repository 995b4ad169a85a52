// Package visibility selects which content variant of a message a given
// viewer sees. Resolution happens at read/broadcast time per recipient,
// never baked into stored rows, so a role change needs no rewrites.
package visibility

import (
	"time"

	"github.com/corpchat/corpchat/internal/domain"
)

// Resolve returns the display text for viewer. Admins and the sender
// see the original; everyone else sees the sanitized variant. An empty
// sanitized body (guarded against upstream, but never trusted) falls
// back to the original so no viewer gets an empty message.
func Resolve(m *domain.Message, viewerID string, role domain.Role) string {
	if m.SanitizedContent == "" {
		return m.OriginalContent
	}
	if role == domain.RoleAdmin || viewerID == m.SenderID {
		return m.OriginalContent
	}
	return m.SanitizedContent
}

// View is the per-viewer shape of a message as broadcast or listed.
type View struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	AppliedTone    string     `json:"applied_tone,omitempty"`
	MediaRef       string     `json:"media_ref,omitempty"`
	IsEdited       bool       `json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ResolveView projects m for the given viewer.
func ResolveView(m *domain.Message, viewerID string, role domain.Role) View {
	return View{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        Resolve(m, viewerID, role),
		AppliedTone:    m.AppliedTone,
		MediaRef:       m.MediaRef,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		IsDeleted:      m.IsDeleted,
		DeletedAt:      m.DeletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
