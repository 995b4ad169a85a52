// Package receipt tracks per-user read receipts. MarkRead is an
// idempotent upsert on the unique (message, user) pair: repeat calls
// refresh the timestamp, never duplicate the row.
package receipt

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/store"
)

// BatchStatus answers the batch query. Exactly one of the two maps is
// populated: Read when a userID filter was supplied, Counts otherwise.
type BatchStatus struct {
	Read   map[string]bool `json:"read,omitempty"`
	Counts map[string]int  `json:"counts,omitempty"`
}

type Service struct {
	receipts      store.Receipts
	messages      store.Messages
	conversations store.Conversations
	log           *zap.SugaredLogger
}

func NewService(receipts store.Receipts, messages store.Messages, conversations store.Conversations, log *zap.SugaredLogger) *Service {
	return &Service{receipts: receipts, messages: messages, conversations: conversations, log: log}
}

// MarkRead records that the user read the message. The first call
// inserts; later calls only move readAt forward.
func (s *Service) MarkRead(ctx context.Context, messageID, userID string) (*domain.ReadReceipt, error) {
	if _, err := s.messages.Get(ctx, messageID); err != nil {
		return nil, err
	}
	rec, err := s.receipts.Upsert(ctx, messageID, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.log.Debugw("message marked read", "message_id", messageID, "user_id", userID)
	return rec, nil
}

// Receipts lists who read the message, ordered by read time ascending.
func (s *Service) Receipts(ctx context.Context, messageID string) ([]*domain.ReadReceipt, error) {
	return s.receipts.ListByMessage(ctx, messageID)
}

// BatchStatus returns either a per-message boolean for one user (userID
// non-empty) or a per-message read count (userID empty, zero-filled).
func (s *Service) BatchStatus(ctx context.Context, messageIDs []string, userID string) (*BatchStatus, error) {
	if userID != "" {
		read, err := s.receipts.ReadSet(ctx, messageIDs, userID)
		if err != nil {
			return nil, err
		}
		return &BatchStatus{Read: read}, nil
	}
	counts, err := s.receipts.Counts(ctx, messageIDs)
	if err != nil {
		return nil, err
	}
	return &BatchStatus{Counts: counts}, nil
}

// AllRead reports whether every expected reader (conversation members
// minus the sender) has read the message. Open conversations have no
// bounded reader set and never report all-read.
func (s *Service) AllRead(ctx context.Context, messageID string) (bool, error) {
	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return false, err
	}
	conv, err := s.conversations.Get(ctx, m.ConversationID)
	if err != nil {
		return false, err
	}
	expected := conv.ExpectedReaders(m.SenderID)
	if expected == nil {
		return false, nil
	}
	if len(expected) == 0 {
		return true, nil
	}
	n, err := s.receipts.CountForUsers(ctx, messageID, expected)
	if err != nil {
		return false, err
	}
	return n == int64(len(expected)), nil
}
