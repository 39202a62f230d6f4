// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// Users originate in the external identity provider; the only mutation this
// layer performs is provisioning a row the first time an identity is seen.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

// EnsureUser inserts a users row for the given identity if none exists yet.
// Concurrent first requests for the same identity race benignly: the insert
// is ON CONFLICT DO NOTHING, so exactly one row survives.
func EnsureUser(ctx context.Context, db *gorm.DB, id, email string) error {
	u := &domain.User{
		ID:        id,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(u).Error
}

// GetUser fetches a user row by identity-provider id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
