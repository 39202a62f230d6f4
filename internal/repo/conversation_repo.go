// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Every read and mutation that takes a userID is scoped to rows owned by
// that user; "absent" and "owned by someone else" are indistinguishable at
// this layer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateConversation inserts a new Conversation owned by userID. The id is a
// randomly generated UUID; threadID may be empty when the backend has not
// opened a thread yet.
func CreateConversation(ctx context.Context, db *gorm.DB, userID, title, threadID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		ThreadID:  threadID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListConversations returns all conversations belonging to userID, ordered
// by last activity descending (most recently touched first). It returns an
// empty slice when the user has none.
func ListConversations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// GetConversation fetches a single conversation by its ID and owner. If no
// owned row exists, it returns ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConversationTitle updates the title of an owned conversation and
// refreshes updated_at. If no rows are affected (missing or foreign-owned),
// it returns ErrNotFound.
func UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AttachThreadID records the backend thread identifier on a conversation
// that does not carry one yet. The guard in the WHERE clause makes the
// attachment idempotent under concurrent turns: once set, the thread id is
// never overwritten, and a no-op attach is not an error.
func AttachThreadID(ctx context.Context, db *gorm.DB, id, threadID string) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND (thread_id IS NULL OR thread_id = '')", id).
		Updates(map[string]any{
			"thread_id":  threadID,
			"updated_at": time.Now().UTC(),
		}).Error
}

// TouchConversation refreshes updated_at so sidebar ordering reflects the
// latest turn. Missing rows are not an error here; the turn flow tolerates
// stale conversation ids.
func TouchConversation(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// DeleteConversation removes an owned conversation and its messages.
// Dependent message rows are deleted first to respect the foreign-key
// constraint; no transaction wraps the pair, so a failure between the two
// deletes leaves an empty conversation behind for the caller to log.
// Returns ErrNotFound when the conversation is missing or foreign-owned.
func DeleteConversation(ctx context.Context, db *gorm.DB, id, userID string) error {
	if _, err := GetConversation(ctx, db, id, userID); err != nil {
		return err
	}
	if err := db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Delete(&domain.Message{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Conversation{}).Error
}
