package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/corpchat/corpchat/internal/ephemeral"
	"github.com/corpchat/corpchat/internal/logger"
)

func newPresenceFixture(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := ephemeral.NewStore(client, "test")
	return NewService(store, 5*time.Minute, logger.Nop()), mr
}

func TestSetOnlineThenStatus(t *testing.T) {
	svc, _ := newPresenceFixture(t)
	ctx := context.Background()

	assert.Equal(t, StatusOffline, svc.GetStatus(ctx, "alice"))
	svc.SetOnline(ctx, "alice")
	assert.Equal(t, StatusOnline, svc.GetStatus(ctx, "alice"))
}

func TestSetOfflineClearsMarker(t *testing.T) {
	svc, _ := newPresenceFixture(t)
	ctx := context.Background()

	svc.SetOnline(ctx, "alice")
	svc.SetOffline(ctx, "alice")
	assert.Equal(t, StatusOffline, svc.GetStatus(ctx, "alice"))
}

func TestPresenceExpiresByTTL(t *testing.T) {
	svc, mr := newPresenceFixture(t)
	ctx := context.Background()

	svc.SetOnline(ctx, "alice")
	mr.FastForward(5*time.Minute + time.Second)
	assert.Equal(t, StatusOffline, svc.GetStatus(ctx, "alice"))
}

func TestHeartbeatRefreshesTTL(t *testing.T) {
	svc, mr := newPresenceFixture(t)
	ctx := context.Background()

	svc.SetOnline(ctx, "alice")
	mr.FastForward(4 * time.Minute)
	svc.SetOnline(ctx, "alice")
	mr.FastForward(4 * time.Minute)
	assert.Equal(t, StatusOnline, svc.GetStatus(ctx, "alice"))
}

func TestGetBatchStatus(t *testing.T) {
	svc, _ := newPresenceFixture(t)
	ctx := context.Background()

	svc.SetOnline(ctx, "alice")
	svc.SetOnline(ctx, "carol")

	got := svc.GetBatchStatus(ctx, []string{"alice", "bob", "carol"})
	assert.Equal(t, map[string]string{
		"alice": StatusOnline,
		"bob":   StatusOffline,
		"carol": StatusOnline,
	}, got)
}

func TestStoreDownDegradesToOffline(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(ephemeral.NewStore(client, "test"), 5*time.Minute, logger.Nop())
	ctx := context.Background()

	svc.SetOnline(ctx, "alice")
	mr.Close()

	assert.Equal(t, StatusOffline, svc.GetStatus(ctx, "alice"))
	got := svc.GetBatchStatus(ctx, []string{"alice"})
	assert.Equal(t, StatusOffline, got["alice"])
}
