// Package ws binds authenticated websocket sessions to the chat core.
// The principal is resolved once at upgrade time and pinned to the
// connection; every inbound frame runs under that identity.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/chat"
	"github.com/corpchat/corpchat/internal/dispatch"
	"github.com/corpchat/corpchat/internal/domain"
	"github.com/corpchat/corpchat/internal/identity"
	"github.com/corpchat/corpchat/internal/moderation"
	"github.com/corpchat/corpchat/internal/mutation"
	"github.com/corpchat/corpchat/internal/presence"
	"github.com/corpchat/corpchat/internal/reaction"
	"github.com/corpchat/corpchat/internal/receipt"
	"github.com/corpchat/corpchat/internal/visibility"
)

// envelope is the inbound frame shape.
type envelope struct {
	Type    string  `json:"type"`
	Payload payload `json:"payload"`
}

type payload struct {
	ConversationID string   `json:"conversation_id"`
	MessageID      string   `json:"message_id"`
	Content        string   `json:"content"`
	Tone           string   `json:"tone"`
	MediaRef       string   `json:"media_ref"`
	Emoji          string   `json:"emoji"`
	Members        []string `json:"members"`
	Open           bool     `json:"open"`
}

type Handler struct {
	hub      *dispatch.Hub
	resolver *identity.Resolver
	chat     *chat.Service
	mutation *mutation.Service
	reaction *reaction.Service
	receipt  *receipt.Service
	presence *presence.Service
	typing   *presence.Typing
	producer *dispatch.KafkaProducer
	log      *zap.SugaredLogger

	mu         sync.RWMutex
	principals map[string]identity.Principal
}

func NewHandler(hub *dispatch.Hub, resolver *identity.Resolver, chatSvc *chat.Service, mutationSvc *mutation.Service, reactionSvc *reaction.Service, receiptSvc *receipt.Service, presenceSvc *presence.Service, typing *presence.Typing, producer *dispatch.KafkaProducer, log *zap.SugaredLogger) *Handler {
	return &Handler{
		hub:        hub,
		resolver:   resolver,
		chat:       chatSvc,
		mutation:   mutationSvc,
		reaction:   reactionSvc,
		receipt:    receiptSvc,
		presence:   presenceSvc,
		typing:     typing,
		producer:   producer,
		log:        log,
		principals: make(map[string]identity.Principal),
	}
}

// Serve runs one connection until it closes. Expected URL:
// /ws?token=<jwt>
func (h *Handler) Serve(c *websocket.Conn) {
	token := c.Query("token")
	p, err := h.resolver.Resolve(token)
	if err != nil {
		h.log.Warnw("ws auth failed", "err", err)
		_ = c.WriteJSON(dispatch.Event{Kind: dispatch.EventError, Payload: dispatch.ErrorPayload{Code: "unauthorized", Message: "invalid token"}})
		_ = c.Close()
		return
	}

	client := dispatch.NewClient(p.UserID, c)
	h.hub.AddClient(p.UserID, client)
	h.mu.Lock()
	h.principals[p.UserID] = p
	h.mu.Unlock()

	ctx := context.Background()
	h.presence.SetOnline(ctx, p.UserID)
	h.broadcastPresence(p.UserID, presence.StatusOnline)
	h.log.Infow("ws connected", "user_id", p.UserID)

	go client.WritePump()

	defer func() {
		h.hub.RemoveClient(p.UserID)
		h.mu.Lock()
		delete(h.principals, p.UserID)
		h.mu.Unlock()
		client.Close()
		h.presence.SetOffline(ctx, p.UserID)
		h.broadcastPresence(p.UserID, presence.StatusOffline)
		h.log.Infow("ws disconnected", "user_id", p.UserID)
		_ = c.Close()
	}()

	for {
		var env envelope
		if err := c.ReadJSON(&env); err != nil {
			return
		}
		h.dispatch(ctx, p, client, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, p identity.Principal, client *dispatch.Client, env envelope) {
	switch env.Type {
	case "join":
		h.hub.JoinRoom(env.Payload.ConversationID, p.UserID)
	case "leave":
		h.hub.LeaveRoom(env.Payload.ConversationID, p.UserID)
		h.typing.StopTyping(ctx, env.Payload.ConversationID, p.UserID)
	case "send":
		h.handleSend(ctx, p, client, env.Payload)
	case "edit":
		h.handleEdit(ctx, p, client, env.Payload)
	case "delete":
		h.handleDelete(ctx, p, client, env.Payload)
	case "react":
		h.handleReact(ctx, p, client, env.Payload)
	case "mark_read":
		h.handleMarkRead(ctx, p, client, env.Payload)
	case "typing_start":
		h.handleTypingStart(ctx, p, env.Payload)
	case "typing_stop":
		h.handleTypingStop(ctx, p, env.Payload)
	case "heartbeat":
		h.presence.SetOnline(ctx, p.UserID)
	default:
		h.sendError(client, apperr.ErrValidationFailed)
	}
}

func (h *Handler) handleSend(ctx context.Context, p identity.Principal, client *dispatch.Client, pl payload) {
	m, conv, err := h.chat.Send(ctx, p, chat.SendInput{
		ConversationID: pl.ConversationID,
		Members:        pl.Members,
		Open:           pl.Open,
		Content:        pl.Content,
		Tone:           moderation.Tone(pl.Tone),
		MediaRef:       pl.MediaRef,
	})
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.typing.StopTyping(ctx, conv.ID, p.UserID)
	h.broadcastMessage(ctx, dispatch.EventMessageCreated, m)
}

func (h *Handler) handleEdit(ctx context.Context, p identity.Principal, client *dispatch.Client, pl payload) {
	m, err := h.mutation.Edit(ctx, pl.MessageID, p.UserID, pl.Content)
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.chat.InvalidateRecent(ctx, m.ConversationID)
	h.broadcastEdit(ctx, m)
}

func (h *Handler) handleDelete(ctx context.Context, p identity.Principal, client *dispatch.Client, pl payload) {
	m, err := h.mutation.Delete(ctx, pl.MessageID, p.UserID)
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.chat.InvalidateRecent(ctx, m.ConversationID)
	ev := dispatch.Event{Kind: dispatch.EventMessageDeleted, Payload: dispatch.MessageDeletedPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		DeletedAt:      m.DeletedAt,
	}}
	h.emit(ctx, m.ConversationID, ev)
}

func (h *Handler) handleReact(ctx context.Context, p identity.Principal, client *dispatch.Client, pl payload) {
	res, err := h.reaction.Toggle(ctx, pl.MessageID, p.UserID, pl.Emoji)
	if err != nil {
		h.sendError(client, err)
		return
	}
	m, err := h.chat.Message(ctx, p, pl.MessageID)
	if err != nil {
		return
	}
	ev := dispatch.Event{Kind: dispatch.EventReactionChanged, Payload: dispatch.ReactionChangedPayload{
		MessageID:      pl.MessageID,
		ConversationID: m.ConversationID,
		UserID:         p.UserID,
		Emoji:          res.Emoji,
		Action:         res.Action,
		Counts:         res.Counts,
	}}
	h.emit(ctx, m.ConversationID, ev)
}

func (h *Handler) handleMarkRead(ctx context.Context, p identity.Principal, client *dispatch.Client, pl payload) {
	rec, err := h.receipt.MarkRead(ctx, pl.MessageID, p.UserID)
	if err != nil {
		h.sendError(client, err)
		return
	}
	m, err := h.chat.Message(ctx, p, pl.MessageID)
	if err != nil {
		return
	}
	ev := dispatch.Event{Kind: dispatch.EventReadReceiptUpdated, Payload: dispatch.ReadReceiptUpdatedPayload{
		MessageID:      rec.MessageID,
		ConversationID: m.ConversationID,
		UserID:         rec.UserID,
		ReadAt:         rec.ReadAt,
	}}
	h.emit(ctx, m.ConversationID, ev)
}

func (h *Handler) handleTypingStart(ctx context.Context, p identity.Principal, pl payload) {
	if !h.typing.SetTyping(ctx, pl.ConversationID, p.UserID, p.DisplayName) {
		return
	}
	ev := dispatch.Event{Kind: dispatch.EventTypingStateChanged, Payload: dispatch.TypingStateChangedPayload{
		ConversationID: pl.ConversationID,
		UserID:         p.UserID,
		DisplayName:    p.DisplayName,
		IsTyping:       true,
	}}
	h.hub.ToRoom(pl.ConversationID, ev)
}

func (h *Handler) handleTypingStop(ctx context.Context, p identity.Principal, pl payload) {
	h.typing.StopTyping(ctx, pl.ConversationID, p.UserID)
	ev := dispatch.Event{Kind: dispatch.EventTypingStateChanged, Payload: dispatch.TypingStateChangedPayload{
		ConversationID: pl.ConversationID,
		UserID:         p.UserID,
		DisplayName:    p.DisplayName,
		IsTyping:       false,
	}}
	h.hub.ToRoom(pl.ConversationID, ev)
}

// broadcastMessage resolves content per recipient before delivery, so
// admins and the sender receive the original variant while everyone
// else receives the sanitized one.
func (h *Handler) broadcastMessage(ctx context.Context, kind dispatch.EventKind, m *domain.Message) {
	for _, userID := range h.hub.RoomMembers(m.ConversationID) {
		viewer := h.principal(userID)
		view := visibility.ResolveView(m, viewer.UserID, viewer.Role)
		h.hub.ToUser(userID, dispatch.Event{Kind: kind, Payload: dispatch.MessageCreatedPayload{Message: view}})
	}
	h.mirror(ctx, m.ConversationID, dispatch.Event{
		Kind:    kind,
		Payload: dispatch.MessageCreatedPayload{Message: visibility.ResolveView(m, "", domain.RoleMember)},
	})
}

func (h *Handler) broadcastEdit(ctx context.Context, m *domain.Message) {
	for _, userID := range h.hub.RoomMembers(m.ConversationID) {
		viewer := h.principal(userID)
		h.hub.ToUser(userID, dispatch.Event{Kind: dispatch.EventMessageEdited, Payload: dispatch.MessageEditedPayload{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        visibility.Resolve(m, viewer.UserID, viewer.Role),
			EditedAt:       m.EditedAt,
		}})
	}
	h.mirror(ctx, m.ConversationID, dispatch.Event{Kind: dispatch.EventMessageEdited, Payload: dispatch.MessageEditedPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.SanitizedContent,
		EditedAt:       m.EditedAt,
	}})
}

// emit fans a viewer-independent event to the room and mirrors it onto
// the stream topic.
func (h *Handler) emit(ctx context.Context, room string, ev dispatch.Event) {
	h.hub.ToRoom(room, ev)
	h.mirror(ctx, room, ev)
}

func (h *Handler) mirror(ctx context.Context, room string, ev dispatch.Event) {
	if h.producer == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.producer.Publish(pubCtx, room, ev); err != nil {
		h.log.Warnw("stream mirror failed", "room", room, "kind", ev.Kind, "err", err)
	}
}

func (h *Handler) broadcastPresence(userID, status string) {
	h.hub.Broadcast(dispatch.Event{Kind: dispatch.EventPresenceChanged, Payload: dispatch.PresenceChangedPayload{
		UserID:   userID,
		Status:   status,
		LastSeen: time.Now().UnixMilli(),
	}})
}

func (h *Handler) principal(userID string) identity.Principal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if p, ok := h.principals[userID]; ok {
		return p
	}
	return identity.Principal{UserID: userID, Role: domain.RoleMember}
}

// sendError reports a failure to the requester only. Unclassified
// errors surface a generic message; details stay in logs.
func (h *Handler) sendError(client *dispatch.Client, err error) {
	code := apperr.Code(err)
	msg := err.Error()
	if code == "internal" {
		h.log.Errorw("ws operation failed", "user_id", client.UserID, "err", err)
		msg = "internal error"
	}
	client.Send(dispatch.Event{Kind: dispatch.EventError, Payload: dispatch.ErrorPayload{
		Code:    code,
		Message: msg,
	}})
}
