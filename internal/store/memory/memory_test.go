package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/domain"
)

func TestMessagesConditionalMutation(t *testing.T) {
	s := NewMessages()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Insert(ctx, &domain.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", OriginalContent: "hi", CreatedAt: now}))

	updated, err := s.ApplyEdit(ctx, "m1", "bye", "Bye.", "professional", now)
	require.NoError(t, err)
	assert.True(t, updated.IsEdited)
	assert.Equal(t, "bye", updated.OriginalContent)
	assert.Equal(t, "Bye.", updated.SanitizedContent)

	deleted, err := s.SoftDelete(ctx, "m1", now)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	// mutation after delete resolves at the storage layer
	_, err = s.ApplyEdit(ctx, "m1", "x", "X.", "professional", now)
	assert.ErrorIs(t, err, apperr.ErrAlreadyDeleted)
	_, err = s.SoftDelete(ctx, "m1", now)
	assert.ErrorIs(t, err, apperr.ErrAlreadyDeleted)

	_, err = s.ApplyEdit(ctx, "missing", "x", "X.", "professional", now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMessagesListByConversation(t *testing.T) {
	s := NewMessages()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, s.Insert(ctx, &domain.Message{
			ID:             id,
			ConversationID: "c1",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Insert(ctx, &domain.Message{ID: "other", ConversationID: "c2", CreatedAt: base}))

	out, err := s.ListByConversation(ctx, "c1", 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// newest first
	assert.Equal(t, "m3", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)

	out, err = s.ListByConversation(ctx, "c1", 10, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m1", out[0].ID)
}

func TestMessagesReturnCopies(t *testing.T) {
	s := NewMessages()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &domain.Message{ID: "m1", OriginalContent: "hi"}))
	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	got.OriginalContent = "mutated"

	again, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.OriginalContent)
}

func TestConversationsEnsureIsIdempotent(t *testing.T) {
	s := NewConversations()
	ctx := context.Background()

	first, err := s.Ensure(ctx, &domain.Conversation{ID: "c1", Members: []string{"alice", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, first.Members)

	// second ensure keeps the original membership
	second, err := s.Ensure(ctx, &domain.Conversation{ID: "c1", Members: []string{"mallory"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, second.Members)
}

func TestConversationsTouchActivity(t *testing.T) {
	s := NewConversations()
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := s.Ensure(ctx, &domain.Conversation{ID: "c1"})
	require.NoError(t, err)
	require.NoError(t, s.TouchActivity(ctx, "c1", at))

	c, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, at, c.LastActivityAt)
}

func TestReactionsUniqueTuple(t *testing.T) {
	s := NewReactions()
	ctx := context.Background()
	r := &domain.Reaction{MessageID: "m1", ConversationID: "c1", UserID: "bob", Emoji: "👍", CreatedAt: time.Now().UTC()}

	inserted, err := s.Add(ctx, r)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Add(ctx, r)
	require.NoError(t, err)
	assert.False(t, inserted)

	removed, err := s.Remove(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, "m1", "bob", "👍")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReactionsConcurrentAddSingleWinner(t *testing.T) {
	s := NewReactions()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := s.Add(ctx, &domain.Reaction{MessageID: "m1", UserID: "bob", Emoji: "👍"})
			assert.NoError(t, err)
			if inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReceiptsUpsert(t *testing.T) {
	s := NewReceipts()
	ctx := context.Background()
	t1 := time.Now().UTC()
	t2 := t1.Add(time.Minute)

	first, err := s.Upsert(ctx, "m1", "bob", t1)
	require.NoError(t, err)
	assert.Equal(t, t1, first.ReadAt)

	second, err := s.Upsert(ctx, "m1", "bob", t2)
	require.NoError(t, err)
	assert.Equal(t, t2, second.ReadAt)

	recs, err := s.ListByMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestReceiptsQueries(t *testing.T) {
	s := NewReceipts()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.Upsert(ctx, "m1", "bob", now)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "m1", "carol", now)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "m2", "bob", now)
	require.NoError(t, err)

	read, err := s.ReadSet(ctx, []string{"m1", "m2", "m3"}, "carol")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true, "m2": false, "m3": false}, read)

	counts, err := s.Counts(ctx, []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"m1": 2, "m2": 1, "m3": 0}, counts)

	n, err := s.CountForUsers(ctx, "m1", []string{"bob", "carol", "dave"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
