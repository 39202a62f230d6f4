package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DavidZachariahWC/polybot-backend/internal/assistant"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
	"github.com/DavidZachariahWC/polybot-backend/internal/services"
)

// ---------- shared test plumbing ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type scriptedBackend struct {
	resp *assistant.AskResponse
	err  error
}

func (s scriptedBackend) Ask(context.Context, assistant.AskRequest) (*assistant.AskResponse, error) {
	return s.resp, s.err
}

func newChatRouter(t *testing.T, db *gorm.DB, backend assistant.Responder) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	svc := &services.ChatService{DB: db, Backend: backend}
	ch := NewChatHandler(svc, db, time.Hour)
	r.POST("/api/chat", ch.Chat)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func chatBody(content, conversationID string) map[string]any {
	b := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": content}},
	}
	if conversationID != "" {
		b["conversationId"] = conversationID
	}
	return b
}

// ---------- tests ----------

func TestChat_NewConversation(t *testing.T) {
	db := newHandlerDB(t)
	r := newChatRouter(t, db, scriptedBackend{resp: &assistant.AskResponse{Text: "hi!", ThreadID: "th-1"}})

	w := doJSON(t, r, http.MethodPost, "/api/chat", chatBody("Hello there", ""), map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var reply services.TurnReply
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Role != "assistant" || reply.Content != "hi!" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.ConversationID == "" || reply.ID == "" {
		t.Fatalf("reply missing ids: %+v", reply)
	}
	if reply.ThreadID != "th-1" {
		t.Fatalf("thread id = %q", reply.ThreadID)
	}
}

func TestChat_Unauthenticated(t *testing.T) {
	db := newHandlerDB(t)
	r := newChatRouter(t, db, scriptedBackend{resp: &assistant.AskResponse{Text: "x"}})

	w := doJSON(t, r, http.MethodPost, "/api/chat", chatBody("hi", ""), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Code != ErrCodeUnauthorized {
		t.Fatalf("code = %q", er.Code)
	}

	var n int64
	db.Table("conversations").Count(&n)
	if n != 0 {
		t.Fatal("unauthenticated request had side effects")
	}
}

func TestChat_BadPayloads(t *testing.T) {
	db := newHandlerDB(t)
	r := newChatRouter(t, db, scriptedBackend{resp: &assistant.AskResponse{Text: "x"}})
	hdr := map[string]string{"X-User-ID": "u1"}

	// no messages at all
	w := doJSON(t, r, http.MethodPost, "/api/chat", map[string]any{"messages": []any{}}, hdr)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty array: status = %d", w.Code)
	}
	// whitespace-only content passes binding but fails validation
	w = doJSON(t, r, http.MethodPost, "/api/chat", chatBody("   ", ""), hdr)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank content: status = %d", w.Code)
	}
	// not JSON
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("not json"))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage body: status = %d", rec.Code)
	}
}

func TestChat_BackendDown_FallbackReply(t *testing.T) {
	db := newHandlerDB(t)
	r := newChatRouter(t, db, scriptedBackend{err: errors.New("dial tcp: refused")})

	w := doJSON(t, r, http.MethodPost, "/api/chat", chatBody("anyone home?", ""), map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("fallback must answer 200, got %d", w.Code)
	}

	var reply services.TurnReply
	_ = json.Unmarshal(w.Body.Bytes(), &reply)
	if reply.Content != services.FallbackReply {
		t.Fatalf("content = %q", reply.Content)
	}

	var n int64
	db.Table("messages").Count(&n)
	if n != 0 {
		t.Fatal("fallback turn persisted messages")
	}
}

func TestChat_IdempotencyReplay(t *testing.T) {
	db := newHandlerDB(t)
	r := newChatRouter(t, db, scriptedBackend{resp: &assistant.AskResponse{Text: "answer one"}})
	ctx := context.Background()

	conv, err := repo.CreateConversation(ctx, db, "u1", "t", "")
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	hdr := map[string]string{"X-User-ID": "u1", "Idempotency-Key": "k-123"}
	w := doJSON(t, r, http.MethodPost, "/api/chat", chatBody("question", conv.ID), hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("first call: %d", w.Code)
	}
	var first services.TurnReply
	_ = json.Unmarshal(w.Body.Bytes(), &first)

	// Give the detached persistence phase time to write the bot row.
	waitForMessages(t, db, conv.ID, 2)

	w = doJSON(t, r, http.MethodPost, "/api/chat", chatBody("question", conv.ID), hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("replay call: %d", w.Code)
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("replay header missing")
	}
	var second services.TurnReply
	_ = json.Unmarshal(w.Body.Bytes(), &second)
	if second.ID != first.ID || second.Content != first.Content {
		t.Fatalf("replay diverged: %+v vs %+v", first, second)
	}

	// Still only one persisted turn.
	var n int64
	db.Table("messages").Where("conversation_id = ?", conv.ID).Count(&n)
	if n != 2 {
		t.Fatalf("expected 2 messages after replay, got %d", n)
	}
}

func waitForMessages(t *testing.T, db *gorm.DB, conversationID string, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var n int64
		db.Table("messages").Where("conversation_id = ?", conversationID).Count(&n)
		if n >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages", want)
}
