// Conversation HTTP handlers.
//
// This file exposes REST endpoints for the conversation sidebar:
//   - POST   /api/conversations        (create)
//   - GET    /api/conversations        (list, ETag support)
//   - PATCH  /api/conversations/{id}   (rename)
//   - DELETE /api/conversations/{id}   (delete with messages)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
	"github.com/DavidZachariahWC/polybot-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ConversationService defines conversation lifecycle operations consumed by
// HTTP handlers. Implementations should be safe for concurrent use and must
// honor the provided context for cancellation and timeouts.
type ConversationService interface {
	// Create starts a new conversation for userID with an optional title.
	Create(ctx context.Context, userID, title string) (*domain.Conversation, error)
	// List returns the user's conversations, most recently active first.
	List(ctx context.Context, userID string) ([]domain.Conversation, error)
	// Get fetches one conversation that belongs to userID.
	Get(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	// UpdateTitle renames a conversation that belongs to userID.
	UpdateTitle(ctx context.Context, userID, conversationID, title string) (*domain.Conversation, error)
	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, userID, conversationID string) error
}

// MessageListService defines message retrieval for a conversation thread.
type MessageListService interface {
	// ListForConversation returns the owned conversation's messages oldest
	// first; limit <= 0 means the full thread.
	ListForConversation(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error)
}

// FeedbackService defines operations to capture user feedback on messages.
type FeedbackService interface {
	// Leave submits a feedback value (-1 or 1) for messageID by userID.
	Leave(ctx context.Context, userID, messageID string, value int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for conversations, messages, and
// feedback. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	convSvc ConversationService
	msgSvc  MessageListService
	fbSvc   FeedbackService
}

// New constructs a Handlers instance bound to the given services.
func New(convSvc ConversationService, msgSvc MessageListService, fbSvc FeedbackService) *Handlers {
	return &Handlers{convSvc: convSvc, msgSvc: msgSvc, fbSvc: fbSvc}
}

//
// DTOs
//

// CreateConversationRequest is the JSON payload for creating a conversation.
type CreateConversationRequest struct {
	// Title optionally names the conversation; a default is used when empty.
	Title string `json:"title"`
}

// RenameConversationRequest is the JSON payload for renaming a conversation.
type RenameConversationRequest struct {
	// Title is the new conversation name (1-255 chars).
	Title string `json:"title" binding:"required,min=1,max=255"`
}

// DeleteConversationResponse acknowledges a successful delete.
type DeleteConversationResponse struct {
	Success bool `json:"success"`
}

//
// Handlers
//

// CreateConversation creates an empty conversation for the current user and
// returns the resource with 201.
func (h *Handlers) CreateConversation(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req CreateConversationRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	conv, err := h.convSvc.Create(c.Request.Context(), uid, strings.TrimSpace(req.Title))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, conv)
}

// ListConversations returns the user's sidebar, most recently active first.
// Supports a weak ETag via If-None-Match and may return 304.
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	// ETag pre-check (best effort).
	if db := h.conversationDB(); db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.convSvc.List(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Conversation{}
	}
	ok(c, http.StatusOK, items)
}

// RenameConversation updates the title of an owned conversation and returns
// the updated resource.
func (h *Handlers) RenameConversation(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}

	conv, err := h.convSvc.UpdateTitle(c.Request.Context(), uid, conversationID, req.Title)
	if err != nil {
		if err == services.ErrConversationNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, conv)
}

// DeleteConversation removes an owned conversation and its messages.
func (h *Handlers) DeleteConversation(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	if err := h.convSvc.Delete(c.Request.Context(), uid, conversationID); err != nil {
		if err == services.ErrConversationNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, DeleteConversationResponse{Success: true})
}

// conversationDB exposes the underlying handle when the concrete service is
// in play, enabling the ETag fast path. Fake services in tests return nil.
func (h *Handlers) conversationDB() *gorm.DB {
	if svc, isConcrete := h.convSvc.(*services.ConversationService); isConcrete {
		return svc.DB
	}
	return nil
}
