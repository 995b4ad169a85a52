package reaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/logger"
	memstore "github.com/corpchat/corpchat/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memstore.Messages) {
	t.Helper()
	messages := memstore.NewMessages()
	reactions := memstore.NewReactions()
	return NewService(reactions, messages, logger.Nop()), messages
}

func seed(t *testing.T, messages *memstore.Messages, id string, deleted bool) {
	t.Helper()
	m := &domain.Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       "alice",
		CreatedAt:      time.Now().UTC(),
	}
	if deleted {
		m.IsDeleted = true
	}
	require.NoError(t, messages.Insert(context.Background(), m))
}

func TestToggleIsAnInvolution(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	ctx := context.Background()

	res, err := svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, res.Action)
	assert.Equal(t, map[string]int{"👍": 1}, res.Counts)

	res, err = svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, ActionRemoved, res.Action)
	assert.Empty(t, res.Counts)

	res, err = svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, res.Action)
}

func TestToggleCountsAcrossUsers(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	res, err := svc.Toggle(ctx, "m1", "carol", "👍")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 2}, res.Counts)

	res, err = svc.Toggle(ctx, "m1", "bob", "🎉")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 2, "🎉": 1}, res.Counts)
}

func TestToggleValidation(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "m1", "bob", "")
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)

	_, err = svc.Toggle(ctx, "m1", "bob", "waytoolongemoji")
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)

	_, err = svc.Toggle(ctx, "missing", "bob", "👍")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggleOnDeletedMessage(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", true)

	_, err := svc.Toggle(context.Background(), "m1", "bob", "👍")
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)
}

func TestHasReactedAndHistory(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	seed(t, messages, "m2", false)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "m2", "bob", "🎉")
	require.NoError(t, err)

	ok, err := svc.HasReacted(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasReacted(ctx, "m1", "bob", "🎉")
	require.NoError(t, err)
	assert.False(t, ok)

	hist, err := svc.UserHistory(ctx, "bob", "c1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	// newest first
	assert.Equal(t, "m2", hist[0].MessageID)
	assert.Equal(t, "m1", hist[1].MessageID)
}

func TestDetailedGroupsByEmojiInInsertionOrder(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	ctx := context.Background()

	for _, u := range []string{"bob", "carol", "dave"} {
		_, err := svc.Toggle(ctx, "m1", u, "👍")
		require.NoError(t, err)
	}

	grouped, err := svc.Detailed(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, grouped["👍"], 3)
	assert.Equal(t, "bob", grouped["👍"][0].UserID)
	assert.Equal(t, "dave", grouped["👍"][2].UserID)
}

func TestTopRankingWithDeterministicTieBreak(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	ctx := context.Background()

	// 🎉 twice, 👍 and 👀 once each; 👍 inserted before 👀
	_, err := svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "m1", "bob", "👀")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "m1", "bob", "🎉")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "m1", "carol", "🎉")
	require.NoError(t, err)

	top, err := svc.Top(ctx, "m1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, TopReaction{Emoji: "🎉", Count: 2}, top[0])
	assert.Equal(t, TopReaction{Emoji: "👍", Count: 1}, top[1])
}

func TestRemoveAll(t *testing.T) {
	svc, messages := newTestService(t)
	seed(t, messages, "m1", false)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "m1", "carol", "🎉")
	require.NoError(t, err)

	n, err := svc.RemoveAll(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err := svc.Counts(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, counts)
}
