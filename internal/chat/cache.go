package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/corpchat/corpchat/internal/domain"
)

const recentCacheSize = 10

// RecentCache keeps the newest messages of each conversation in Redis
// so hot conversation views skip the database. Strictly a read
// accelerator; the database stays the source of truth.
type RecentCache struct {
	client *redis.Client
}

func NewRecentCache(client *redis.Client) *RecentCache {
	return &RecentCache{client: client}
}

func (c *RecentCache) key(conversationID string) string {
	return "chat:recent:" + conversationID
}

// Push prepends m and trims the list back to the cache size.
func (c *RecentCache) Push(ctx context.Context, m *domain.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("recent cache marshal: %w", err)
	}
	k := c.key(m.ConversationID)
	pipe := c.client.Pipeline()
	pipe.LPush(ctx, k, b)
	pipe.LTrim(ctx, k, 0, recentCacheSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recent cache push: %w", err)
	}
	return nil
}

// Recent returns the cached messages newest first. A miss or decode
// problem returns nil so the caller falls through to the database.
func (c *RecentCache) Recent(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	raw, err := c.client.LRange(ctx, c.key(conversationID), 0, recentCacheSize-1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent cache range: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]*domain.Message, 0, len(raw))
	for _, item := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, nil
		}
		out = append(out, &m)
	}
	return out, nil
}

// Invalidate drops the cached window after an edit or delete so stale
// content never outlives the mutation.
func (c *RecentCache) Invalidate(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, c.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("recent cache invalidate: %w", err)
	}
	return nil
}
