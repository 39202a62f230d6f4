package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

// Gorm adapts the package-level repository functions to the interfaces the
// service layer declares. It carries no state of its own; the *gorm.DB handle
// travels with each call.
type Gorm struct{}

func (Gorm) CreateConversation(ctx context.Context, db *gorm.DB, userID, title, threadID string) (*domain.Conversation, error) {
	return CreateConversation(ctx, db, userID, title, threadID)
}

func (Gorm) ListConversations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	return ListConversations(ctx, db, userID)
}

func (Gorm) GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	return GetConversation(ctx, db, id, userID)
}

func (Gorm) UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return UpdateConversationTitle(ctx, db, id, userID, title)
}

func (Gorm) DeleteConversation(ctx context.Context, db *gorm.DB, id, userID string) error {
	return DeleteConversation(ctx, db, id, userID)
}
