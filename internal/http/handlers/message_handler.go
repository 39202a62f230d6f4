// Message HTTP handlers.
//
// This file exposes the read side of conversation threads:
//   - GET /api/conversations/{id}/messages   (full thread, oldest first)
//
// Writes happen exclusively through the chat turn endpoint; there is no
// direct message creation route.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
	"github.com/DavidZachariahWC/polybot-backend/internal/services"
	"github.com/DavidZachariahWC/polybot-backend/internal/utils"
)

// ListMessages returns the messages of an owned conversation in creation
// order. Supports a weak ETag via If-None-Match and an optional ?limit query
// parameter capping the number of returned rows.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
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

	limit := utils.AtoiDefault(c.Query("limit"), 0)

	// ETag pre-check (best effort). Messages are append-only, so count plus
	// the newest created_at pins the thread state.
	if db := h.conversationDB(); db != nil && limit <= 0 {
		count, maxTS, err := repo.MessagesStats(ctx, db, conversationID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, conversationID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.msgSvc.ListForConversation(ctx, uid, conversationID, limit)
	if err != nil {
		if err == services.ErrConversationNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, items)
}
