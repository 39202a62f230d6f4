// Chat HTTP handler.
//
// This file exposes the endpoint at the heart of the API:
//   - POST /api/chat   (run one chat turn against the inference backend)
//
// The handler is transport-thin: it binds the turn payload, pulls identity and
// the caller's bearer token from the request context, delegates to
// services.ChatService, and translates the result. Backend failures never
// surface as HTTP errors; the service substitutes a fallback reply and the
// handler returns it with 200 like any other turn.
//
// Idempotency:
// If the client supplies an Idempotency-Key header together with a
// conversationId and a previous successful turn exists for
// (user, conversation, key), the handler returns the recorded assistant
// message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
	"github.com/DavidZachariahWC/polybot-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ChatTurnService runs a single chat turn. Implementations must be safe for
// concurrent use and honor the provided context.
type ChatTurnService interface {
	// Converse sends the latest user message to the inference backend and
	// arranges persistence of the exchange. The channel reports the outcome
	// of the write phase; handlers may ignore it.
	Converse(ctx context.Context, userID, bearerToken string, in services.TurnInput) (*services.TurnReply, <-chan error, error)
}

//
// DTOs
//

// ChatMessage is one entry of the client-supplied message history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest is the JSON payload for a chat turn. Only the last message is
// forwarded to the backend; conversationId is optional and absent on the
// first turn of a new conversation.
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages" binding:"required,min=1"`
	ConversationID string        `json:"conversationId"`
}

//
// Handler wiring
//

// ChatHandler serves the chat turn endpoint.
type ChatHandler struct {
	svc ChatTurnService

	// db enables idempotency replay lookups; nil disables the feature.
	db *gorm.DB
	// idempotencyTTL bounds how long a recorded key can be replayed.
	idempotencyTTL time.Duration
}

// NewChatHandler constructs a ChatHandler. db may be nil, in which case
// Idempotency-Key headers are ignored.
func NewChatHandler(svc ChatTurnService, db *gorm.DB, idempotencyTTL time.Duration) *ChatHandler {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &ChatHandler{svc: svc, db: db, idempotencyTTL: idempotencyTTL}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header (tests use
// it). It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// bearerToken returns the raw bearer token stashed by the auth middleware,
// for forwarding to the inference backend.
func bearerToken(c *gin.Context) string {
	if v, ok := c.Get("bearerToken"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Chat runs one chat turn.
//
// Responses:
//   - 200 with the assistant reply (real or fallback)
//   - 400 for malformed payloads, empty or oversized messages
//   - 401 when no identity is present
func (h *ChatHandler) Chat(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "messages array with at least one entry is required")
		return
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if replayed := h.replay(c, uid, req.ConversationID, key); replayed {
		return
	}

	in := services.TurnInput{ConversationID: req.ConversationID}
	for _, m := range req.Messages {
		in.Messages = append(in.Messages, services.TurnMessage{Role: m.Role, Content: m.Content})
	}

	reply, _, err := h.svc.Converse(c.Request.Context(), uid, bearerToken(c), in)
	if err != nil {
		switch err {
		case services.ErrEmptyMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is empty")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	h.record(c, uid, reply, key)
	ok(c, http.StatusOK, reply)
}

// replay serves a recorded reply for a repeated Idempotency-Key. It returns
// true when a response was written. Lookups that miss, have expired, or point
// at a message that never got persisted all fall through to a fresh turn.
func (h *ChatHandler) replay(c *gin.Context, uid, conversationID, key string) bool {
	if h.db == nil || key == "" || conversationID == "" {
		return false
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db, uid, conversationID, key, time.Now().UTC())
	if err != nil {
		return false
	}
	msg, err := repo.GetMessage(h.db.WithContext(c.Request.Context()), rec.MessageID)
	if err != nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, http.StatusOK, &services.TurnReply{
		Role:           services.RoleAssistant,
		Content:        msg.Content,
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
	})
	return true
}

// record stores the turn outcome under the Idempotency-Key. Best effort: a
// failure here never affects the response, and fallback replies (which have
// no persisted message) are never recorded.
func (h *ChatHandler) record(c *gin.Context, uid string, reply *services.TurnReply, key string) {
	if h.db == nil || key == "" || reply == nil || reply.ConversationID == "" {
		return
	}
	if reply.Content == services.FallbackReply {
		return
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), h.db, uid, reply.ConversationID, key, reply.ID, http.StatusOK, h.idempotencyTTL)
}
