// Package services – ConversationService
//
// This file implements the ConversationService, which manages the lifecycle
// of conversations: creation (with a defaulted title), sidebar listing,
// renaming, and deletion. Ownership rules are enforced here so that handlers
// only translate errors; a conversation another user owns is reported the
// same way as one that does not exist.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/DavidZachariahWC/polybot-backend/internal/domain"
)

// DefaultConversationTitle is used when a conversation is created explicitly
// without a title. Implicit creation during a chat turn derives the title
// from the first message instead.
const DefaultConversationTitle = "New Conversation"

// ConversationRepo defines the repository contract required by
// ConversationService. Implementations are responsible for persistence of
// conversation aggregates.
type ConversationRepo interface {
	// CreateConversation inserts a new conversation row for the given user.
	CreateConversation(ctx context.Context, db *gorm.DB, userID, title, threadID string) (*domain.Conversation, error)

	// ListConversations returns the user's conversations, most recently
	// active first.
	ListConversations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error)

	// GetConversation fetches a conversation by ID ensuring it belongs to the user.
	GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error)

	// UpdateConversationTitle renames an owned conversation.
	UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error

	// DeleteConversation removes an owned conversation and its messages,
	// dependent rows first.
	DeleteConversation(ctx context.Context, db *gorm.DB, id, userID string) error
}

// ConversationService provides conversation-level operations and enforces
// title normalization and ownership constraints.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewConversationService constructs a ConversationService with sane defaults.
func NewConversationService(db *gorm.DB, r ConversationRepo) *ConversationService {
	return &ConversationService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 255,
	}
}

// Create inserts a new conversation owned by userID with the provided title.
// Titles are Unicode-normalized, trimmed, clipped, and defaulted when blank.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = DefaultConversationTitle
	}
	return s.Repo.CreateConversation(ctx, s.DB, userID, s.clip(title), "")
}

// List returns all conversations for a user, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.Repo.ListConversations(ctx, s.DB, userID)
}

// Get fetches one owned conversation. Absent and foreign-owned rows both
// yield ErrConversationNotFound.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.Repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// UpdateTitle renames an owned conversation and returns the updated row.
func (s *ConversationService) UpdateTitle(ctx context.Context, userID, conversationID, title string) (*domain.Conversation, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = DefaultConversationTitle
	}
	if err := s.Repo.UpdateConversationTitle(ctx, s.DB, conversationID, userID, s.clip(title)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return s.Get(ctx, userID, conversationID)
}

// Delete removes an owned conversation together with its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if err := s.Repo.DeleteConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// clip truncates a title to the configured maximum rune length.
func (s *ConversationService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle applies NFC normalization, trims whitespace, and collapses
// runs of whitespace to single spaces. User-entered titles arrive in all
// sorts of compositions; storing NFC keeps equality checks sane.
func normalizeTitle(s string) string {
	s = norm.NFC.String(s)
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
