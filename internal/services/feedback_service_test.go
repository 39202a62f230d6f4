package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
)

func TestFeedback_Leave_InvalidValue(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t)}

	for _, v := range []int{0, 2, -2, 100} {
		if err := svc.Leave(context.Background(), "u1", "m1", v); !errors.Is(err, ErrInvalidFeedback) {
			t.Fatalf("value %d: expected ErrInvalidFeedback, got %v", v, err)
		}
	}
}

func TestFeedback_Leave_MessageNotFound(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t)}

	if err := svc.Leave(context.Background(), "u1", "missing", 1); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestFeedback_Leave_ConversationNotOwned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, _ := repo.CreateConversation(ctx, db, "ownerA", "t", "")
	msg, err := repo.CreateMessage(db, conv.ID, domain.SenderBot, "hi")
	if err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	svc := &FeedbackService{DB: db}
	if err := svc.Leave(ctx, "uX", msg.ID, 1); !errors.Is(err, ErrForbiddenFeedback) {
		t.Fatalf("expected ErrForbiddenFeedback (not owner), got %v", err)
	}
}

func TestFeedback_Leave_UserMessageRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, _ := repo.CreateConversation(ctx, db, "u1", "t", "")
	msg, err := repo.CreateMessage(db, conv.ID, domain.SenderUser, "hello")
	if err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	svc := &FeedbackService{DB: db}
	if err := svc.Leave(ctx, "u1", msg.ID, 1); !errors.Is(err, ErrForbiddenFeedback) {
		t.Fatalf("expected ErrForbiddenFeedback for user message, got %v", err)
	}
}

func TestFeedback_Leave_DuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conv, _ := repo.CreateConversation(ctx, db, "u1", "t", "")
	msg, err := repo.CreateMessage(db, conv.ID, domain.SenderBot, "answer")
	if err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	svc := &FeedbackService{DB: db}
	if err := svc.Leave(ctx, "u1", msg.ID, 1); err != nil {
		t.Fatalf("first feedback: %v", err)
	}
	if err := svc.Leave(ctx, "u1", msg.ID, -1); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("expected ErrDuplicateFeedback, got %v", err)
	}
}
