package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

func TestAppendTurn_OrderAndBotID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, _ := CreateConversation(ctx, db, "u1", "t", "")
	botID := uuid.NewString()

	if err := AppendTurn(db, conv.ID, "what is up", botID, "not much"); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := ListMessages(db, conv.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != domain.SenderUser || msgs[0].Content != "what is up" {
		t.Fatalf("first row should be the user message: %+v", msgs[0])
	}
	if msgs[1].Sender != domain.SenderBot || msgs[1].ID != botID {
		t.Fatalf("second row should be the bot message with the supplied id: %+v", msgs[1])
	}
	if msgs[1].CreatedAt.Before(msgs[0].CreatedAt) {
		t.Fatal("bot message created before user message")
	}
}

func TestListMessages_Limit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, _ := CreateConversation(ctx, db, "u1", "t", "")
	for i := 0; i < 3; i++ {
		if err := AppendTurn(db, conv.ID, "q", uuid.NewString(), "a"); err != nil {
			t.Fatalf("seed turn %d: %v", i, err)
		}
	}

	all, _ := ListMessages(db, conv.ID, 0)
	if len(all) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(all))
	}

	capped, _ := ListMessages(db, conv.ID, 4)
	if len(capped) != 4 {
		t.Fatalf("expected 4 messages with limit, got %d", len(capped))
	}
	// The capped slice is the oldest prefix of the full thread.
	for i := range capped {
		if capped[i].ID != all[i].ID {
			t.Fatalf("limit changed ordering at index %d", i)
		}
	}
}

func TestGetMessage_Missing(t *testing.T) {
	db := newTestDB(t)

	if _, err := GetMessage(db, uuid.NewString()); err == nil {
		t.Fatal("expected error for missing message")
	}
}

func TestCreateFeedback_UniquePerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, _ := CreateConversation(ctx, db, "u1", "t", "")
	bot, err := CreateMessage(db, conv.ID, domain.SenderBot, "answer")
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := CreateFeedback(ctx, db, bot.ID, "u1", 1); err != nil {
		t.Fatalf("first feedback: %v", err)
	}
	if err := CreateFeedback(ctx, db, bot.ID, "u1", -1); err == nil {
		t.Fatal("expected unique violation on second feedback")
	}
	// A different user may still rate the same message.
	if err := CreateFeedback(ctx, db, bot.ID, "u2", -1); err != nil {
		t.Fatalf("second user feedback: %v", err)
	}
}
