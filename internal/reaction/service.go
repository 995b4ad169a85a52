// Package reaction maintains idempotent emoji reactions. Uniqueness of
// the (message, user, emoji) tuple is a storage-layer constraint, so two
// racing toggles resolve deterministically: one insert wins, the
// duplicate is a no-op.
package reaction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/store"
)

const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// ToggleResult reports which way the toggle went and the full per-emoji
// aggregation recomputed after the mutation.
type ToggleResult struct {
	Action string         `json:"action"`
	Emoji  string         `json:"emoji"`
	Counts map[string]int `json:"counts"`
}

// TopReaction is one entry of the most-popular ranking.
type TopReaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

type Service struct {
	reactions store.Reactions
	messages  store.Messages
	log       *zap.SugaredLogger
}

func NewService(reactions store.Reactions, messages store.Messages, log *zap.SugaredLogger) *Service {
	return &Service{reactions: reactions, messages: messages, log: log}
}

// Toggle adds the tuple when absent and removes it when present, then
// returns the recomputed counts for the whole message.
func (s *Service) Toggle(ctx context.Context, messageID, userID, emoji string) (*ToggleResult, error) {
	if len(emoji) == 0 || len(emoji) > 10 {
		return nil, fmt.Errorf("%w: invalid emoji", apperr.ErrValidationFailed)
	}

	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, fmt.Errorf("%w: cannot react to a deleted message", apperr.ErrValidationFailed)
	}

	exists, err := s.reactions.Exists(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}

	var action string
	if exists {
		if _, err := s.reactions.Remove(ctx, messageID, userID, emoji); err != nil {
			return nil, err
		}
		action = ActionRemoved
	} else {
		inserted, err := s.reactions.Add(ctx, &domain.Reaction{
			MessageID:      messageID,
			ConversationID: m.ConversationID,
			UserID:         userID,
			Emoji:          emoji,
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			action = ActionAdded
		} else {
			// Lost an insert race: the tuple exists, so this toggle
			// lands as a removal.
			if _, err := s.reactions.Remove(ctx, messageID, userID, emoji); err != nil {
				return nil, err
			}
			action = ActionRemoved
		}
	}

	counts, err := s.reactions.CountsByEmoji(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.log.Infow("reaction toggled", "message_id", messageID, "user_id", userID, "emoji", emoji, "action", action)
	return &ToggleResult{Action: action, Emoji: emoji, Counts: counts}, nil
}

// Counts returns the per-emoji aggregation for a message.
func (s *Service) Counts(ctx context.Context, messageID string) (map[string]int, error) {
	return s.reactions.CountsByEmoji(ctx, messageID)
}

// Detailed groups reactors per emoji in insertion-time order.
func (s *Service) Detailed(ctx context.Context, messageID string) (map[string][]*domain.Reaction, error) {
	rows, err := s.reactions.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	grouped := map[string][]*domain.Reaction{}
	for _, r := range rows {
		grouped[r.Emoji] = append(grouped[r.Emoji], r)
	}
	return grouped, nil
}

// HasReacted reports whether the user holds the given tuple.
func (s *Service) HasReacted(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	return s.reactions.Exists(ctx, messageID, userID, emoji)
}

// UserHistory returns the user's reactions in the conversation, newest
// first.
func (s *Service) UserHistory(ctx context.Context, userID, conversationID string) ([]*domain.Reaction, error) {
	return s.reactions.ListByUserInConversation(ctx, userID, conversationID)
}

// Top returns the n most-used reactions. Ties break toward the emoji
// inserted earliest so the ranking is deterministic.
func (s *Service) Top(ctx context.Context, messageID string, n int) ([]TopReaction, error) {
	rows, err := s.reactions.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	firstSeen := map[string]int{}
	for i, r := range rows {
		counts[r.Emoji]++
		if _, ok := firstSeen[r.Emoji]; !ok {
			firstSeen[r.Emoji] = i
		}
	}
	out := make([]TopReaction, 0, len(counts))
	for e, c := range counts {
		out = append(out, TopReaction{Emoji: e, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return firstSeen[out[i].Emoji] < firstSeen[out[j].Emoji]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// RemoveAll bulk-deletes every reaction on the message. Used when the
// parent message is deleted.
func (s *Service) RemoveAll(ctx context.Context, messageID string) (int64, error) {
	return s.reactions.RemoveAllForMessage(ctx, messageID)
}
