// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
//
// Error semantics: duplicate feedback (same message_id, user_id) relies on
// the database unique constraint and is returned as a raw DB error; the
// service layer translates it into a domain error.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

// CreateFeedback inserts a feedback row for the given message and user.
// Value must be -1 or 1; validation is enforced at higher layers and via
// the DB check constraint.
func CreateFeedback(ctx context.Context, db *gorm.DB, messageID, userID string, value int) error {
	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		MessageID: messageID,
		UserID:    userID,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(fb).Error
}
