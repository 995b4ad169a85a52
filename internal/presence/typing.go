package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/ephemeral"
)

// TypingUser is the payload stored per live typing marker.
type TypingUser struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Timestamp   int64  `json:"timestamp"`
}

// Typing maintains self-expiring typing markers with an in-process
// per-(user,conversation) throttle. Throttled calls are reported as not
// processed so the caller skips the re-broadcast.
type Typing struct {
	store    *ephemeral.Store
	ttl      time.Duration
	throttle time.Duration
	log      *zap.SugaredLogger

	mu        sync.Mutex
	lastEvent map[string]time.Time
}

func NewTyping(store *ephemeral.Store, ttl, throttle time.Duration, log *zap.SugaredLogger) *Typing {
	return &Typing{
		store:     store,
		ttl:       ttl,
		throttle:  throttle,
		log:       log,
		lastEvent: make(map[string]time.Time),
	}
}

func typingKey(conversationID, userID string) string {
	return "typing:" + conversationID + ":" + userID
}

func throttleKey(conversationID, userID string) string {
	return userID + ":" + conversationID
}

// SetTyping writes the typing marker unless the pair is inside its
// throttle window. Returns false when the call was dropped (throttled
// or store unavailable); the caller must not broadcast in that case.
func (t *Typing) SetTyping(ctx context.Context, conversationID, userID, displayName string) bool {
	now := time.Now()
	tk := throttleKey(conversationID, userID)

	t.mu.Lock()
	if last, ok := t.lastEvent[tk]; ok && now.Sub(last) < t.throttle {
		t.mu.Unlock()
		return false
	}
	t.lastEvent[tk] = now
	t.mu.Unlock()

	payload, _ := json.Marshal(TypingUser{
		UserID:      userID,
		DisplayName: displayName,
		Timestamp:   now.UnixMilli(),
	})
	if err := t.store.SetTTL(ctx, typingKey(conversationID, userID), string(payload), t.ttl); err != nil {
		t.log.Warnw("set typing failed", "user_id", userID, "conversation_id", conversationID, "err", err)
		return false
	}
	return true
}

// StopTyping deletes the marker and clears the throttle bookkeeping so
// the next SetTyping goes through immediately.
func (t *Typing) StopTyping(ctx context.Context, conversationID, userID string) {
	if err := t.store.Delete(ctx, typingKey(conversationID, userID)); err != nil {
		t.log.Warnw("stop typing failed", "user_id", userID, "conversation_id", conversationID, "err", err)
	}
	t.mu.Lock()
	delete(t.lastEvent, throttleKey(conversationID, userID))
	t.mu.Unlock()
}

// GetTypingUsers enumerates the live markers under the conversation's
// prefix. Expired markers drop out on their own.
func (t *Typing) GetTypingUsers(ctx context.Context, conversationID string) []TypingUser {
	values, err := t.store.ScanPrefix(ctx, "typing:"+conversationID+":")
	if err != nil {
		t.log.Warnw("get typing users failed", "conversation_id", conversationID, "err", err)
		return nil
	}
	out := make([]TypingUser, 0, len(values))
	for _, v := range values {
		var tu TypingUser
		if err := json.Unmarshal([]byte(v), &tu); err != nil {
			t.log.Warnw("bad typing payload", "err", err)
			continue
		}
		out = append(out, tu)
	}
	return out
}

// IsTyping reports whether the user's marker is live.
func (t *Typing) IsTyping(ctx context.Context, conversationID, userID string) bool {
	ok, err := t.store.Exists(ctx, typingKey(conversationID, userID))
	if err != nil {
		return false
	}
	return ok
}

// SweepThrottle drops throttle entries older than maxAge. Returns the
// number of entries removed.
func (t *Typing) SweepThrottle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, at := range t.lastEvent {
		if at.Before(cutoff) {
			delete(t.lastEvent, k)
			n++
		}
	}
	return n
}

// RunSweeper purges stale throttle bookkeeping every interval until ctx
// is done, bounding the map's memory.
func (t *Typing) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.SweepThrottle(maxAge); n > 0 {
				t.log.Debugw("typing throttle swept", "removed", n)
			}
		}
	}
}
