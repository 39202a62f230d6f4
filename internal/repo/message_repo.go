// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

// CreateMessage appends one message row. Messages are append-only; there is
// no update or delete counterpart outside conversation deletion.
func CreateMessage(db *gorm.DB, conversationID, sender, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// AppendTurn persists one completed exchange: the user's message followed by
// the bot's reply, in a single transaction. The bot row id is supplied by the
// caller so the API response and the stored row share an identifier. The
// insert order guarantees created_at(USER) <= created_at(BOT).
func AppendTurn(db *gorm.DB, conversationID, userContent, botID, botContent string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := CreateMessage(tx, conversationID, domain.SenderUser, userContent); err != nil {
			return err
		}
		bot := &domain.Message{
			ID:             botID,
			ConversationID: conversationID,
			Sender:         domain.SenderBot,
			Content:        botContent,
			CreatedAt:      time.Now().UTC(),
		}
		return tx.Create(bot).Error
	})
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
// A limit <= 0 returns the full thread.
func ListMessages(db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
