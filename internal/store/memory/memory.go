// Package memstore implements the persistence collaborators in process
// memory. It mirrors the Mongo implementation's constraint semantics
// (compound-key uniqueness, conditional mutation updates) and backs
// tests and single-node development.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/domain"
)

type Messages struct {
	mu   sync.RWMutex
	rows map[string]*domain.Message
}

func NewMessages() *Messages {
	return &Messages{rows: make(map[string]*domain.Message)}
}

func (s *Messages) Insert(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; ok {
		return nil
	}
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *Messages) Get(_ context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Messages) ListByConversation(_ context.Context, conversationID string, limit int64, before time.Time) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.Message{}
	for _, m := range s.rows {
		if m.ConversationID != conversationID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Messages) ApplyEdit(_ context.Context, id, original, sanitized, tone string, editedAt time.Time) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if m.IsDeleted {
		return nil, apperr.ErrAlreadyDeleted
	}
	m.OriginalContent = original
	m.SanitizedContent = sanitized
	m.AppliedTone = tone
	m.IsEdited = true
	t := editedAt
	m.EditedAt = &t
	m.UpdatedAt = editedAt
	cp := *m
	return &cp, nil
}

func (s *Messages) SoftDelete(_ context.Context, id string, deletedAt time.Time) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if m.IsDeleted {
		return nil, apperr.ErrAlreadyDeleted
	}
	m.IsDeleted = true
	t := deletedAt
	m.DeletedAt = &t
	m.UpdatedAt = deletedAt
	cp := *m
	return &cp, nil
}

type Conversations struct {
	mu   sync.RWMutex
	rows map[string]*domain.Conversation
}

func NewConversations() *Conversations {
	return &Conversations{rows: make(map[string]*domain.Conversation)}
}

func (s *Conversations) Ensure(_ context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[c.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *c
	s.rows[c.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Conversations) Get(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Conversations) TouchActivity(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.rows[id]; ok {
		c.LastActivityAt = at
	}
	return nil
}

type reactionKey struct {
	messageID string
	userID    string
	emoji     string
}

type Reactions struct {
	mu   sync.Mutex
	rows map[reactionKey]*domain.Reaction
	seq  int64
	ord  map[reactionKey]int64
}

func NewReactions() *Reactions {
	return &Reactions{
		rows: make(map[reactionKey]*domain.Reaction),
		ord:  make(map[reactionKey]int64),
	}
}

func (s *Reactions) Add(_ context.Context, r *domain.Reaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, ok := s.rows[k]; ok {
		return false, nil
	}
	cp := *r
	s.rows[k] = &cp
	s.seq++
	s.ord[k] = s.seq
	return true, nil
}

func (s *Reactions) Remove(_ context.Context, messageID, userID, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := reactionKey{messageID, userID, emoji}
	if _, ok := s.rows[k]; !ok {
		return false, nil
	}
	delete(s.rows, k)
	delete(s.ord, k)
	return true, nil
}

func (s *Reactions) Exists(_ context.Context, messageID, userID, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[reactionKey{messageID, userID, emoji}]
	return ok, nil
}

func (s *Reactions) CountsByEmoji(_ context.Context, messageID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for k := range s.rows {
		if k.messageID == messageID {
			counts[k.emoji]++
		}
	}
	return counts, nil
}

func (s *Reactions) ListByMessage(_ context.Context, messageID string) ([]*domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type entry struct {
		r   *domain.Reaction
		seq int64
	}
	entries := []entry{}
	for k, r := range s.rows {
		if k.messageID == messageID {
			cp := *r
			entries = append(entries, entry{&cp, s.ord[k]})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*domain.Reaction, len(entries))
	for i, e := range entries {
		out[i] = e.r
	}
	return out, nil
}

func (s *Reactions) ListByUserInConversation(_ context.Context, userID, conversationID string) ([]*domain.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type entry struct {
		r   *domain.Reaction
		seq int64
	}
	entries := []entry{}
	for k, r := range s.rows {
		if k.userID == userID && r.ConversationID == conversationID {
			cp := *r
			entries = append(entries, entry{&cp, s.ord[k]})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	out := make([]*domain.Reaction, len(entries))
	for i, e := range entries {
		out[i] = e.r
	}
	return out, nil
}

func (s *Reactions) RemoveAllForMessage(_ context.Context, messageID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.rows {
		if k.messageID == messageID {
			delete(s.rows, k)
			delete(s.ord, k)
			n++
		}
	}
	return n, nil
}

type receiptKey struct {
	messageID string
	userID    string
}

type Receipts struct {
	mu   sync.Mutex
	rows map[receiptKey]*domain.ReadReceipt
}

func NewReceipts() *Receipts {
	return &Receipts{rows: make(map[receiptKey]*domain.ReadReceipt)}
}

func (s *Receipts) Upsert(_ context.Context, messageID, userID string, readAt time.Time) (*domain.ReadReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := receiptKey{messageID, userID}
	if rec, ok := s.rows[k]; ok {
		rec.ReadAt = readAt
		cp := *rec
		return &cp, nil
	}
	rec := &domain.ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: readAt}
	s.rows[k] = rec
	cp := *rec
	return &cp, nil
}

func (s *Receipts) ListByMessage(_ context.Context, messageID string) ([]*domain.ReadReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.ReadReceipt{}
	for k, rec := range s.rows {
		if k.messageID == messageID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadAt.Before(out[j].ReadAt) })
	return out, nil
}

func (s *Receipts) ReadSet(_ context.Context, messageIDs []string, userID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	read := map[string]bool{}
	for _, id := range messageIDs {
		_, ok := s.rows[receiptKey{id, userID}]
		read[id] = ok
	}
	return read, nil
}

func (s *Receipts) Counts(_ context.Context, messageIDs []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, id := range messageIDs {
		counts[id] = 0
	}
	for k := range s.rows {
		if _, want := counts[k.messageID]; want {
			counts[k.messageID]++
		}
	}
	return counts, nil
}

func (s *Receipts) CountForUsers(_ context.Context, messageID string, userIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range userIDs {
		if _, ok := s.rows[receiptKey{messageID, u}]; ok {
			n++
		}
	}
	return n, nil
}
