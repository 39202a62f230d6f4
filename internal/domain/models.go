// Package domain defines the persistence models for users, conversations,
// messages, and feedback. These types are mapped with GORM and form the core
// data layer of the polybot backend.
package domain

import "time"

// Message sender values. The wire format mirrors the stored enum.
const (
	SenderUser = "USER"
	SenderBot  = "BOT"
)

// User represents an authenticated principal. The primary key is the opaque
// identifier issued by the external identity provider; rows are created on
// the first successful authentication and never mutated or deleted here.
type User struct {
	ID              string    `json:"id"                          gorm:"type:varchar(64);primaryKey"`
	Email           string    `json:"email,omitempty"             gorm:"type:varchar(255)"`
	FirstName       string    `json:"first_name,omitempty"        gorm:"type:varchar(255)"`
	LastName        string    `json:"last_name,omitempty"         gorm:"type:varchar(255)"`
	ProfileImageURL string    `json:"profile_image_url,omitempty" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Conversation is one chat session owned by a single user.
//
// ThreadID is an opaque continuity token returned by the inference backend.
// It is attached at most once: a conversation that already carries a thread
// id never has it overwritten. UpdatedAt is refreshed on every mutation,
// including each completed chat turn, so sidebar ordering tracks activity.
type Conversation struct {
	ID        string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"             gorm:"type:varchar(64);not null;index:idx_user_conversations"`
	Title     string    `json:"title"               gorm:"type:varchar(255);not null;default:'New Conversation'"`
	ThreadID  string    `json:"thread_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single turn half within a conversation, authored either by
// the user ("USER") or the bot ("BOT"). Messages are append-only: they are
// never mutated or reordered, and retrieval order is creation time ascending.
type Message struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	Sender         string    `json:"sender"          gorm:"type:varchar(8);not null;check:sender IN ('USER','BOT')"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`

	// Conversation is the parent session. Messages are cascade-deleted if
	// their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Feedback records a +1/-1 rating a user left on a specific bot message.
// A user can rate a given message at most once (unique index).
type Feedback struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_user"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index;uniqueIndex:ux_feedback_message_user"`
	Value     int       `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	CreatedAt time.Time `json:"created_at"`

	// Message is the rated bot message. Feedback is cascade-deleted if the
	// underlying message is removed.
	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
