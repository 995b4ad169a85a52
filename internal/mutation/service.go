// Package mutation governs message edit and delete transitions. A
// message is Active (possibly flagged edited) until a single terminal
// soft delete. Every transition re-checks ownership, liveness and the
// wall-clock window at call time; the final write is conditional at the
// storage layer so a racing edit/delete pair resolves there, not in
// application code.
package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/moderation"
	"github.com/corpchat/corpchat/internal/store"
)

// Sanitizer re-derives the sanitized variant when content changes.
type Sanitizer interface {
	Sanitize(ctx context.Context, text string, tone moderation.Tone, instructionOverride string) moderation.Result
}

type Service struct {
	messages     store.Messages
	reactions    store.Reactions
	sanitizer    Sanitizer
	editWindow   time.Duration
	deleteWindow time.Duration
	maxContent   int
	log          *zap.SugaredLogger
}

func NewService(messages store.Messages, reactions store.Reactions, sanitizer Sanitizer, editWindow, deleteWindow time.Duration, maxContent int, log *zap.SugaredLogger) *Service {
	return &Service{
		messages:     messages,
		reactions:    reactions,
		sanitizer:    sanitizer,
		editWindow:   editWindow,
		deleteWindow: deleteWindow,
		maxContent:   maxContent,
		log:          log,
	}
}

// Edit replaces the message content within the edit window. Both
// content variants are re-derived; the edited flag is set.
func (s *Service) Edit(ctx context.Context, messageID, requesterID, newText string) (*domain.Message, error) {
	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := checkMutable(m, requesterID, s.editWindow, now); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(newText)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: content empty", apperr.ErrValidationFailed)
	}
	if len(newText) > s.maxContent {
		return nil, fmt.Errorf("%w: content exceeds %d characters", apperr.ErrValidationFailed, s.maxContent)
	}

	tone := moderation.Tone(m.AppliedTone)
	if tone == "" {
		tone = moderation.ToneProfessional
	}
	res := s.sanitizer.Sanitize(ctx, trimmed, tone, "")
	if res.Degraded {
		s.log.Warnw("edit sanitization degraded", "message_id", messageID, "diagnostic", res.Diagnostic)
	}

	updated, err := s.messages.ApplyEdit(ctx, messageID, trimmed, res.Sanitized, string(res.AppliedTone), now)
	if err != nil {
		return nil, err
	}
	s.log.Infow("message edited", "message_id", messageID, "user_id", requesterID)
	return updated, nil
}

// Delete soft-deletes the message within the delete window and cascades
// removal of its reactions. Content is retained for audit.
func (s *Service) Delete(ctx context.Context, messageID, requesterID string) (*domain.Message, error) {
	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := checkMutable(m, requesterID, s.deleteWindow, now); err != nil {
		return nil, err
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID, now)
	if err != nil {
		return nil, err
	}

	if n, err := s.reactions.RemoveAllForMessage(ctx, messageID); err != nil {
		s.log.Warnw("reaction cascade failed", "message_id", messageID, "err", err)
	} else if n > 0 {
		s.log.Infow("reactions removed with message", "message_id", messageID, "count", n)
	}

	s.log.Infow("message deleted", "message_id", messageID, "user_id", requesterID)
	return deleted, nil
}

// CanEdit mirrors Edit's preconditions without committing anything.
func (s *Service) CanEdit(ctx context.Context, messageID, requesterID string) (bool, string) {
	return s.can(ctx, messageID, requesterID, s.editWindow)
}

// CanDelete mirrors Delete's preconditions without committing anything.
func (s *Service) CanDelete(ctx context.Context, messageID, requesterID string) (bool, string) {
	return s.can(ctx, messageID, requesterID, s.deleteWindow)
}

func (s *Service) can(ctx context.Context, messageID, requesterID string, window time.Duration) (bool, string) {
	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return false, apperr.Code(err)
	}
	if err := checkMutable(m, requesterID, window, time.Now().UTC()); err != nil {
		return false, apperr.Code(err)
	}
	return true, ""
}

func checkMutable(m *domain.Message, requesterID string, window time.Duration, now time.Time) error {
	if m.SenderID != requesterID {
		return fmt.Errorf("%w: only the sender may modify a message", apperr.ErrPermissionDenied)
	}
	if m.IsDeleted {
		return apperr.ErrAlreadyDeleted
	}
	if m.Age(now) > window {
		return fmt.Errorf("%w: window is %s", apperr.ErrWindowExpired, window)
	}
	return nil
}
