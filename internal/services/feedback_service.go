// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how users rate bot
// replies (-1 or +1). It enforces message existence, conversation ownership,
// the bot-only restriction, and per-user uniqueness, and persists feedback
// atomically.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
)

// FeedbackService implements the use-cases around message feedback.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB *gorm.DB
}

// Leave records a feedback value for messageID on behalf of userID.
//
// Validation:
//   - value must be exactly -1 or 1; otherwise ErrInvalidFeedback.
//   - messageID must exist; otherwise ErrMessageNotFound.
//   - The message's conversation must be owned by userID and the message
//     must be a bot reply; otherwise ErrForbiddenFeedback.
//   - One feedback per (message, user); a repeat yields ErrDuplicateFeedback.
//
// The checks and the insert run inside one transaction.
func (s *FeedbackService) Leave(ctx context.Context, userID, messageID string, value int) error {
	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := repo.GetMessage(tx, messageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}

		if _, err := repo.GetConversation(ctx, tx, msg.ConversationID, userID); err != nil {
			// either not found or not owned by this user
			return ErrForbiddenFeedback
		}

		if msg.Sender != domain.SenderBot {
			return ErrForbiddenFeedback
		}

		if err := repo.CreateFeedback(ctx, tx, messageID, userID, value); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
				return ErrDuplicateFeedback
			}
			return err
		}
		return nil
	})
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
