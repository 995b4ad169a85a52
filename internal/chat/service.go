// Package chat orchestrates the message send and read paths: content
// validation, lazy conversation creation, sanitization, persistence and
// the per-viewer projection of stored messages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/dispatch"
	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/identity"
	"github.com/corpchat/corpchat/internal/moderation"
	"github.com/corpchat/corpchat/internal/store"
	"github.com/corpchat/corpchat/internal/visibility"
)

// Sanitizer rewrites outbound text before it is stored.
type Sanitizer interface {
	Sanitize(ctx context.Context, text string, tone moderation.Tone, instructionOverride string) moderation.Result
}

// SendInput carries one outbound message. Members and Open only matter
// when the conversation does not exist yet.
type SendInput struct {
	ConversationID string
	Members        []string
	Open           bool
	Content        string
	Tone           moderation.Tone
	MediaRef       string
}

type Service struct {
	messages      store.Messages
	conversations store.Conversations
	sanitizer     Sanitizer
	cache         *RecentCache
	events        *dispatch.NATSPublisher
	maxContent    int
	log           *zap.SugaredLogger
}

func NewService(messages store.Messages, conversations store.Conversations, sanitizer Sanitizer, cache *RecentCache, events *dispatch.NATSPublisher, maxContent int, log *zap.SugaredLogger) *Service {
	return &Service{
		messages:      messages,
		conversations: conversations,
		sanitizer:     sanitizer,
		cache:         cache,
		events:        events,
		maxContent:    maxContent,
		log:           log,
	}
}

// Send validates, sanitizes and persists one message. Sanitization
// failure degrades to the local transform and never blocks the send;
// storage failure surfaces only the generic send error, with the real
// cause in logs.
func (s *Service) Send(ctx context.Context, p identity.Principal, in SendInput) (*domain.Message, *domain.Conversation, error) {
	trimmed := strings.TrimSpace(in.Content)
	if trimmed == "" && in.MediaRef == "" {
		return nil, nil, fmt.Errorf("%w: content empty", apperr.ErrValidationFailed)
	}
	if len(in.Content) > s.maxContent {
		return nil, nil, fmt.Errorf("%w: content exceeds %d characters", apperr.ErrValidationFailed, s.maxContent)
	}
	if in.ConversationID == "" {
		return nil, nil, fmt.Errorf("%w: conversation id required", apperr.ErrValidationFailed)
	}

	conv, err := s.ensureConversation(ctx, p, in)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasMember(p.UserID) {
		return nil, nil, fmt.Errorf("%w: not a conversation member", apperr.ErrPermissionDenied)
	}

	now := time.Now().UTC()
	m := &domain.Message{
		ID:              uuid.NewString(),
		ConversationID:  conv.ID,
		SenderID:        p.UserID,
		OriginalContent: trimmed,
		MediaRef:        in.MediaRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if trimmed != "" {
		res := s.sanitizer.Sanitize(ctx, trimmed, in.Tone, "")
		m.SanitizedContent = res.Sanitized
		m.AppliedTone = string(res.AppliedTone)
		if res.Degraded {
			s.log.Warnw("send sanitization degraded", "conversation_id", conv.ID, "diagnostic", res.Diagnostic)
		}
	}

	if err := s.messages.Insert(ctx, m); err != nil {
		s.log.Errorw("message insert failed", "conversation_id", conv.ID, "user_id", p.UserID, "err", err)
		return nil, nil, apperr.ErrSendFailed
	}

	if err := s.conversations.TouchActivity(ctx, conv.ID, now); err != nil {
		s.log.Warnw("touch activity failed", "conversation_id", conv.ID, "err", err)
	}
	if s.cache != nil {
		if err := s.cache.Push(ctx, m); err != nil {
			s.log.Warnw("recent cache push failed", "conversation_id", conv.ID, "err", err)
		}
	}

	s.log.Infow("message sent", "message_id", m.ID, "conversation_id", conv.ID, "user_id", p.UserID)
	return m, conv, nil
}

// ensureConversation fetches the conversation, lazily creating it on
// first use. Creation is announced on the side channel; a racing
// duplicate announcement is harmless.
func (s *Service) ensureConversation(ctx context.Context, p identity.Principal, in SendInput) (*domain.Conversation, error) {
	conv, err := s.conversations.Get(ctx, in.ConversationID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		s.log.Errorw("conversation lookup failed", "conversation_id", in.ConversationID, "err", err)
		return nil, apperr.ErrSendFailed
	}

	members := in.Members
	if !in.Open && !contains(members, p.UserID) {
		members = append(append([]string{}, members...), p.UserID)
	}
	now := time.Now().UTC()
	conv, err = s.conversations.Ensure(ctx, &domain.Conversation{
		ID:             in.ConversationID,
		Members:        members,
		Open:           in.Open,
		LastActivityAt: now,
		CreatedAt:      now,
	})
	if err != nil {
		s.log.Errorw("conversation create failed", "conversation_id", in.ConversationID, "err", err)
		return nil, apperr.ErrSendFailed
	}
	s.log.Infow("conversation created", "conversation_id", conv.ID, "open", conv.Open)
	if err := s.events.PublishConversationCreated(dispatch.ConversationCreatedEvent{
		ConversationID: conv.ID,
		Members:        conv.Members,
		Open:           conv.Open,
	}); err != nil {
		s.log.Warnw("conversation created event failed", "conversation_id", conv.ID, "err", err)
	}
	return conv, nil
}

// History lists messages for the viewer, newest first, each projected
// through visibility resolution. The recent cache serves the first page
// of hot conversations.
func (s *Service) History(ctx context.Context, p identity.Principal, conversationID string, limit int64, before time.Time) ([]visibility.View, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(p.UserID) {
		return nil, fmt.Errorf("%w: not a conversation member", apperr.ErrPermissionDenied)
	}

	var msgs []*domain.Message
	if s.cache != nil && before.IsZero() && limit > 0 && limit <= recentCacheSize {
		if cached, err := s.cache.Recent(ctx, conversationID); err != nil {
			s.log.Warnw("recent cache read failed", "conversation_id", conversationID, "err", err)
		} else if int64(len(cached)) >= limit {
			msgs = cached[:limit]
		}
	}
	if msgs == nil {
		msgs, err = s.messages.ListByConversation(ctx, conversationID, limit, before)
		if err != nil {
			return nil, err
		}
	}

	out := make([]visibility.View, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, visibility.ResolveView(m, p.UserID, p.Role))
	}
	return out, nil
}

// Message fetches one message projected for the viewer.
func (s *Service) Message(ctx context.Context, p identity.Principal, messageID string) (visibility.View, error) {
	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return visibility.View{}, err
	}
	conv, err := s.conversations.Get(ctx, m.ConversationID)
	if err != nil {
		return visibility.View{}, err
	}
	if !conv.HasMember(p.UserID) {
		return visibility.View{}, fmt.Errorf("%w: not a conversation member", apperr.ErrPermissionDenied)
	}
	return visibility.ResolveView(m, p.UserID, p.Role), nil
}

// Conversation returns the conversation if the viewer belongs to it.
func (s *Service) Conversation(ctx context.Context, p identity.Principal, conversationID string) (*domain.Conversation, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(p.UserID) {
		return nil, fmt.Errorf("%w: not a conversation member", apperr.ErrPermissionDenied)
	}
	return conv, nil
}

// InvalidateRecent drops the cached window after a mutation.
func (s *Service) InvalidateRecent(ctx context.Context, conversationID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, conversationID); err != nil {
		s.log.Warnw("recent cache invalidate failed", "conversation_id", conversationID, "err", err)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
