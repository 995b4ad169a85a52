// Package presence tracks short-lived liveness and typing signals in
// the ephemeral store. Key existence is the only state: a live
// presence marker means online, a live typing marker means typing, and
// TTL expiry is the cleanup. If the store is unreachable everything
// degrades to offline/not-typing; these paths never fail a send.
package presence

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/ephemeral"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	presenceChannel = "presence"
)

type statusEvent struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type Service struct {
	store     *ephemeral.Store
	onlineTTL time.Duration
	log       *zap.SugaredLogger
}

func NewService(store *ephemeral.Store, onlineTTL time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{store: store, onlineTTL: onlineTTL, log: log}
}

func presenceKey(userID string) string { return "presence:" + userID }

// SetOnline refreshes the liveness marker and publishes the change.
// Heartbeats call this repeatedly; a missed heartbeat simply lets the
// marker expire.
func (s *Service) SetOnline(ctx context.Context, userID string) {
	if err := s.store.SetTTL(ctx, presenceKey(userID), StatusOnline, s.onlineTTL); err != nil {
		s.log.Warnw("set online failed", "user_id", userID, "err", err)
		return
	}
	s.publish(ctx, userID, StatusOnline)
}

// SetOffline removes the marker and publishes the change.
func (s *Service) SetOffline(ctx context.Context, userID string) {
	if err := s.store.Delete(ctx, presenceKey(userID)); err != nil {
		s.log.Warnw("set offline failed", "user_id", userID, "err", err)
		return
	}
	s.publish(ctx, userID, StatusOffline)
}

// GetStatus reports online iff the marker exists. Store errors read as
// offline.
func (s *Service) GetStatus(ctx context.Context, userID string) string {
	ok, err := s.store.Exists(ctx, presenceKey(userID))
	if err != nil {
		s.log.Warnw("get status failed", "user_id", userID, "err", err)
		return StatusOffline
	}
	if ok {
		return StatusOnline
	}
	return StatusOffline
}

// GetBatchStatus checks many users in one pipelined round trip.
func (s *Service) GetBatchStatus(ctx context.Context, userIDs []string) map[string]string {
	out := make(map[string]string, len(userIDs))
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
		out[id] = StatusOffline
	}
	alive, err := s.store.ExistsBatch(ctx, keys)
	if err != nil {
		s.log.Warnw("batch status failed", "err", err)
		return out
	}
	for i, id := range userIDs {
		if alive[keys[i]] {
			out[id] = StatusOnline
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context, userID, status string) {
	b, _ := json.Marshal(statusEvent{UserID: userID, Status: status})
	if err := s.store.Publish(ctx, presenceChannel, b); err != nil {
		s.log.Warnw("presence publish failed", "user_id", userID, "err", err)
	}
}
