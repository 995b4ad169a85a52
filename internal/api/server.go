// Package api exposes the read-side REST surface and the websocket
// upgrade route. Writes flow through the websocket session; REST covers
// queries a client needs outside a live connection.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/chat"
	"github.com/corpchat/corpchat/internal/identity"
	"github.com/corpchat/corpchat/internal/mutation"
	"github.com/corpchat/corpchat/internal/presence"
	"github.com/corpchat/corpchat/internal/reaction"
	"github.com/corpchat/corpchat/internal/receipt"
	"github.com/corpchat/corpchat/internal/ws"
)

type Server struct {
	resolver *identity.Resolver
	chat     *chat.Service
	mutation *mutation.Service
	reaction *reaction.Service
	receipt  *receipt.Service
	presence *presence.Service
	typing   *presence.Typing
	log      *zap.SugaredLogger
}

func NewServer(resolver *identity.Resolver, chatSvc *chat.Service, mutationSvc *mutation.Service, reactionSvc *reaction.Service, receiptSvc *receipt.Service, presenceSvc *presence.Service, typing *presence.Typing, wsHandler *ws.Handler, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	s := &Server{
		resolver: resolver,
		chat:     chatSvc,
		mutation: mutationSvc,
		reaction: reactionSvc,
		receipt:  receiptSvc,
		presence: presenceSvc,
		typing:   typing,
		log:      log,
	}

	api := app.Group("/v1")

	api.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.Serve))

	authed := api.Group("/", s.auth)
	authed.Get("/conversations/:conv_id/messages", s.getMessages)
	authed.Get("/conversations/:conv_id/typing", s.getTypingUsers)
	authed.Get("/messages/:message_id", s.getMessage)
	authed.Get("/messages/:message_id/permissions", s.getPermissions)
	authed.Get("/messages/:message_id/reactions", s.getReactions)
	authed.Get("/messages/:message_id/reactions/top", s.getTopReactions)
	authed.Get("/messages/:message_id/receipts", s.getReceipts)
	authed.Post("/receipts/batch", s.postBatchReceipts)
	authed.Get("/presence", s.getPresence)

	return app
}

// auth resolves the bearer token into a principal pinned on the request
// context.
func (s *Server) auth(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	p, err := s.resolver.Resolve(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "code": "unauthorized"})
	}
	c.Locals("principal", p)
	return c.Next()
}

func principalOf(c *fiber.Ctx) identity.Principal {
	p, _ := c.Locals("principal").(identity.Principal)
	return p
}

func (s *Server) getMessages(c *fiber.Ctx) error {
	p := principalOf(c)
	limit := int64(c.QueryInt("limit", 50))
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.fail(c, apperr.ErrValidationFailed)
		}
		before = t
	}
	views, err := s.chat.History(c.Context(), p, c.Params("conv_id"), limit, before)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": views})
}

func (s *Server) getMessage(c *fiber.Ctx) error {
	view, err := s.chat.Message(c.Context(), principalOf(c), c.Params("message_id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": view})
}

// getPermissions answers what the requester may still do with the
// message, with the blocking reason when they may not.
func (s *Server) getPermissions(c *fiber.Ctx) error {
	p := principalOf(c)
	id := c.Params("message_id")
	canEdit, editReason := s.mutation.CanEdit(c.Context(), id, p.UserID)
	canDelete, deleteReason := s.mutation.CanDelete(c.Context(), id, p.UserID)
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{
		"can_edit":      canEdit,
		"edit_reason":   editReason,
		"can_delete":    canDelete,
		"delete_reason": deleteReason,
	}})
}

func (s *Server) getReactions(c *fiber.Ctx) error {
	id := c.Params("message_id")
	if c.QueryBool("detailed", false) {
		grouped, err := s.reaction.Detailed(c.Context(), id)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"status": "success", "data": grouped})
	}
	counts, err := s.reaction.Counts(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": counts})
}

func (s *Server) getTopReactions(c *fiber.Ctx) error {
	top, err := s.reaction.Top(c.Context(), c.Params("message_id"), c.QueryInt("n", 3))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": top})
}

func (s *Server) getReceipts(c *fiber.Ctx) error {
	id := c.Params("message_id")
	recs, err := s.receipt.Receipts(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	allRead, err := s.receipt.AllRead(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"receipts": recs, "all_read": allRead}})
}

type batchReceiptsRequest struct {
	MessageIDs []string `json:"message_ids"`
	UserID     string   `json:"user_id"`
}

func (s *Server) postBatchReceipts(c *fiber.Ctx) error {
	var req batchReceiptsRequest
	if err := c.BodyParser(&req); err != nil || len(req.MessageIDs) == 0 {
		return s.fail(c, apperr.ErrValidationFailed)
	}
	status, err := s.receipt.BatchStatus(c.Context(), req.MessageIDs, req.UserID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": status})
}

func (s *Server) getPresence(c *fiber.Ctx) error {
	ids := strings.Split(c.Query("user_ids"), ",")
	if len(ids) == 1 && ids[0] == "" {
		return s.fail(c, apperr.ErrValidationFailed)
	}
	statuses := s.presence.GetBatchStatus(c.Context(), ids)
	return c.JSON(fiber.Map{"status": "success", "data": statuses})
}

func (s *Server) getTypingUsers(c *fiber.Ctx) error {
	users := s.typing.GetTypingUsers(c.Context(), c.Params("conv_id"))
	return c.JSON(fiber.Map{"status": "success", "data": users})
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	code := apperr.Code(err)
	status := fiber.StatusInternalServerError
	switch code {
	case "validation_failed", "already_deleted":
		status = fiber.StatusBadRequest
	case "permission_denied":
		status = fiber.StatusForbidden
	case "window_expired":
		status = fiber.StatusConflict
	case "not_found":
		status = fiber.StatusNotFound
	}
	msg := err.Error()
	if code == "internal" {
		s.log.Errorw("request failed", "path", c.Path(), "err", err)
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"status": "error", "code": code, "message": msg})
}
