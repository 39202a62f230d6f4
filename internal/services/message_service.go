// Package services – MessageService
//
// This file implements MessageService, which serves the message thread of a
// conversation. Messages are append-only and written exclusively by the chat
// turn flow (see ChatService); this service only reads, after verifying that
// the conversation belongs to the caller.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
)

// MessageService reads conversation threads on behalf of their owners.
type MessageService struct {
	DB *gorm.DB
}

// ListForConversation returns the messages of an owned conversation in
// creation order (oldest first). limit <= 0 returns the full thread.
//
// The ownership check runs first: a missing or foreign-owned conversation
// yields ErrConversationNotFound before any message row is read.
func (s *MessageService) ListForConversation(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListForConversation",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	if _, err := repo.GetConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	return repo.ListMessages(s.DB.WithContext(ctx), conversationID, limit)
}
