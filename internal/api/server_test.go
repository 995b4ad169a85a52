package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpchat/corpchat/internal/chat"
	"github.com/corpchat/corpchat/internal/dispatch"
	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/ephemeral"
	"github.com/corpchat/corpchat/internal/identity"
	"github.com/corpchat/corpchat/internal/logger"
	"github.com/corpchat/corpchat/internal/moderation"
	"github.com/corpchat/corpchat/internal/mutation"
	"github.com/corpchat/corpchat/internal/presence"
	"github.com/corpchat/corpchat/internal/reaction"
	"github.com/corpchat/corpchat/internal/receipt"
	memstore "github.com/corpchat/corpchat/internal/store/memory"
	"github.com/corpchat/corpchat/internal/ws"
)

const testSecret = "api-test-secret"

type passSanitizer struct{}

func (passSanitizer) Sanitize(_ context.Context, text string, tone moderation.Tone, _ string) moderation.Result {
	return moderation.Result{Sanitized: "clean: " + text, AppliedTone: tone}
}

type testEnv struct {
	app     *fiber.App
	chat    *chat.Service
	receipt *receipt.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.Nop()
	messages := memstore.NewMessages()
	conversations := memstore.NewConversations()
	reactions := memstore.NewReactions()
	receipts := memstore.NewReceipts()

	eph := ephemeral.NewStore(client, "test")
	presenceSvc := presence.NewService(eph, 5*time.Minute, log)
	typing := presence.NewTyping(eph, 3*time.Second, 2*time.Second, log)

	chatSvc := chat.NewService(messages, conversations, passSanitizer{}, chat.NewRecentCache(client), nil, 5000, log)
	mutationSvc := mutation.NewService(messages, reactions, passSanitizer{}, 5*time.Minute, 5*time.Minute, 5000, log)
	reactionSvc := reaction.NewService(reactions, messages, log)
	receiptSvc := receipt.NewService(receipts, messages, conversations, log)

	resolver := identity.NewResolver(testSecret)
	hub := dispatch.NewHub()
	wsHandler := ws.NewHandler(hub, resolver, chatSvc, mutationSvc, reactionSvc, receiptSvc, presenceSvc, typing, nil, log)

	app := NewServer(resolver, chatSvc, mutationSvc, reactionSvc, receiptSvc, presenceSvc, typing, wsHandler, log)
	return &testEnv{app: app, chat: chatSvc, receipt: receiptSvc}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": userID, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func get(t *testing.T, app *fiber.App, path, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	_ = json.Unmarshal(body, &parsed)
	return resp, parsed
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := get(t, env.app, "/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	resp, body := get(t, env.app, "/v1/presence?user_ids=alice", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestGetMessagesResolvesVisibilityPerViewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, err := env.chat.Send(ctx, identity.Principal{UserID: "alice", Role: domain.RoleMember}, chat.SendInput{
		ConversationID: "c1",
		Members:        []string{"bob"},
		Content:        "raw words",
	})
	require.NoError(t, err)

	resp, body := get(t, env.app, "/v1/conversations/c1/messages", token(t, "bob", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "clean: raw words", data[0].(map[string]any)["content"])

	resp, body = get(t, env.app, "/v1/conversations/c1/messages", token(t, "alice", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "raw words", body["data"].([]any)[0].(map[string]any)["content"])

	resp, body = get(t, env.app, "/v1/conversations/c1/messages", token(t, "root", "admin"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "raw words", body["data"].([]any)[0].(map[string]any)["content"])
}

func TestGetMessagesDeniedForNonMember(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.chat.Send(context.Background(), identity.Principal{UserID: "alice"}, chat.SendInput{
		ConversationID: "c1",
		Content:        "hi",
	})
	require.NoError(t, err)

	resp, body := get(t, env.app, "/v1/conversations/c1/messages", token(t, "mallory", ""))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission_denied", body["code"])
}

func TestGetMessageNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, body := get(t, env.app, "/v1/messages/missing", token(t, "alice", ""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestGetPermissions(t *testing.T) {
	env := newTestEnv(t)
	m, _, err := env.chat.Send(context.Background(), identity.Principal{UserID: "alice"}, chat.SendInput{
		ConversationID: "c1",
		Content:        "hi",
	})
	require.NoError(t, err)

	_, body := get(t, env.app, "/v1/messages/"+m.ID+"/permissions", token(t, "alice", ""))
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["can_edit"])
	assert.Equal(t, true, data["can_delete"])

	_, body = get(t, env.app, "/v1/messages/"+m.ID+"/permissions", token(t, "bob", ""))
	data = body["data"].(map[string]any)
	assert.Equal(t, false, data["can_edit"])
	assert.Equal(t, "permission_denied", data["edit_reason"])
}

func TestBatchReceipts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, _, err := env.chat.Send(ctx, identity.Principal{UserID: "alice"}, chat.SendInput{
		ConversationID: "c1",
		Members:        []string{"bob"},
		Content:        "hi",
	})
	require.NoError(t, err)
	_, err = env.receipt.MarkRead(ctx, m.ID, "bob")
	require.NoError(t, err)

	reqBody := `{"message_ids":["` + m.ID + `"],"user_id":"bob"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts/batch", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, "alice", ""))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(raw, &parsed))
	read := parsed["data"].(map[string]any)["read"].(map[string]any)
	assert.Equal(t, true, read[m.ID])
}

func TestGetPresenceBatch(t *testing.T) {
	env := newTestEnv(t)
	resp, body := get(t, env.app, "/v1/presence?user_ids=alice,bob", token(t, "alice", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "offline", data["alice"])
	assert.Equal(t, "offline", data["bob"])
}
