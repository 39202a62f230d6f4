package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
)

func TestLeaveFeedback_Flow(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPIRouter(t, db)
	ctx := context.Background()

	conv, _ := repo.CreateConversation(ctx, db, "u1", "t", "")
	bot, err := repo.CreateMessage(db, conv.ID, domain.SenderBot, "answer")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	hdr := map[string]string{"X-User-ID": "u1"}

	w := doJSON(t, r, http.MethodPost, "/api/messages/"+bot.ID+"/feedback", map[string]int{"value": 1}, hdr)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Duplicate -> 409
	w = doJSON(t, r, http.MethodPost, "/api/messages/"+bot.ID+"/feedback", map[string]int{"value": -1}, hdr)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: status = %d", w.Code)
	}
}

func TestLeaveFeedback_InvalidValue(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPIRouter(t, db)

	w := doJSON(t, r, http.MethodPost, "/api/messages/any/feedback", map[string]int{"value": 5}, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLeaveFeedback_UserMessageForbidden(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPIRouter(t, db)
	ctx := context.Background()

	conv, _ := repo.CreateConversation(ctx, db, "u1", "t", "")
	usr, err := repo.CreateMessage(db, conv.ID, domain.SenderUser, "hello")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/messages/"+usr.ID+"/feedback", map[string]int{"value": 1}, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLeaveFeedback_MissingMessage(t *testing.T) {
	db := newHandlerDB(t)
	r := newAPIRouter(t, db)

	w := doJSON(t, r, http.MethodPost, "/api/messages/ghost/feedback", map[string]int{"value": 1}, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
