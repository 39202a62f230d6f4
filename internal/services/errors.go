// Package services defines the business logic for chat turns, conversations,
// messages, and feedback. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current user. The two cases are
	// deliberately indistinguishable so that callers cannot probe for other
	// users' data.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when a chat turn carries no messages or the
	// latest message has no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a message exceeds the maximum configured
	// length limit.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (currently -1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenFeedback is returned when a user attempts to leave feedback
	// on a message they are not permitted to rate.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when a user attempts to rate a message
	// they have already rated.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
