// Package services – ChatService
//
// This file implements the conversation reconciliation flow behind the chat
// endpoint. Given an inbound turn (the client's message history plus an
// optional conversation id), the service resolves conversation identity and
// backend thread linkage, performs one synchronous call to the inference
// backend, and persists both sides of the exchange.
//
// The failure policy is asymmetric on purpose:
//   - Failures before the backend call (empty input, oversized input) are
//     hard errors with no side effects.
//   - A backend failure is absorbed into a fixed fallback reply so the chat
//     UI stays responsive; nothing is persisted on that path.
//   - Persistence failures after a successful backend call are logged and
//     counted but never change the returned payload. The write phase runs as
//     a detached task with its own deadline; Converse hands back a completion
//     channel so tests (and curious callers) can observe the outcome.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DavidZachariahWC/polybot-backend/internal/assistant"
	"github.com/DavidZachariahWC/polybot-backend/internal/repo"
)

// RoleAssistant is the role reported for every reply, including fallbacks.
const RoleAssistant = "assistant"

// FallbackReply is returned verbatim whenever the inference backend cannot
// produce an answer. Clients render it like any other bot message.
const FallbackReply = "I'm sorry, I'm having trouble connecting to my backend server. Please try again later."

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by outcome (ok or fallback).",
		},
		[]string{"outcome"},
	)
	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persist_failures_total",
			Help: "Best-effort persistence phases that failed after a successful backend reply.",
		},
	)
)

func init() {
	prometheus.MustRegister(turnsTotal, persistFailures)
}

// TurnMessage is one entry of the client-supplied history.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnInput is a single inbound chat turn.
type TurnInput struct {
	Messages       []TurnMessage
	ConversationID string
}

// TurnReply is the normalized response for one turn.
type TurnReply struct {
	Role           string `json:"role"`
	Content        string `json:"content"`
	ID             string `json:"id"`
	ConversationID string `json:"conversationId,omitempty"`
	ThreadID       string `json:"threadId,omitempty"`
}

// ChatService orchestrates one chat turn end to end.
type ChatService struct {
	DB      *gorm.DB
	Backend assistant.Responder

	// MaxPromptRunes caps the outbound message length; 0 disables the cap.
	MaxPromptRunes int
	// TitlePrefixRunes is how much of the first message seeds a new
	// conversation's title. Defaults to 50.
	TitlePrefixRunes int
	// PersistTimeout bounds the detached write phase. Defaults to 10s.
	PersistTimeout time.Duration
}

// Converse runs one chat turn.
//
// Only the content of the LAST message is sent to the backend; earlier
// entries exist for the client's benefit and are ignored here. The returned
// channel receives the outcome of the best-effort persistence phase (nil on
// success) and is closed afterwards; on paths that persist nothing it is
// already closed. The error return covers only hard pre-backend failures.
func (s *ChatService) Converse(ctx context.Context, userID, bearerToken string, in TurnInput) (*TurnReply, <-chan error, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Converse",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("conversation.id", in.ConversationID),
		),
	)
	defer span.End()

	prompt, err := s.lastUserMessage(in)
	if err != nil {
		return nil, nil, err
	}

	// Resolve thread linkage. A stale or foreign conversation id is
	// tolerated: the thread id simply stays unset and the supplied id is
	// kept, matching the read policy of the rest of the API.
	conversationID := in.ConversationID
	knownThreadID := ""
	conversationExists := false
	if conversationID != "" {
		conv, gerr := repo.GetConversation(ctx, s.DB, conversationID, userID)
		switch {
		case gerr == nil:
			knownThreadID = conv.ThreadID
			conversationExists = true
		case errors.Is(gerr, repo.ErrNotFound):
			// tolerated; continue without a thread id
		default:
			log.Warn().Err(gerr).Str("conversation_id", conversationID).Msg("conversation lookup failed")
		}
	}

	resp, err := s.Backend.Ask(ctx, assistant.AskRequest{
		Query:          assistant.Query{Text: prompt},
		ConversationID: conversationID,
		ThreadID:       knownThreadID,
		BearerToken:    bearerToken,
	})
	if err != nil {
		turnsTotal.WithLabelValues("fallback").Inc()
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("inference backend call failed")
		return &TurnReply{
			Role:           RoleAssistant,
			Content:        FallbackReply,
			ID:             uuid.NewString(),
			ConversationID: conversationID,
		}, closedDone(), nil
	}

	// A brand-new conversation must exist before we answer, because the
	// client needs its id. Creation failure is swallowed like every other
	// post-backend persistence problem; the reply then carries no id.
	if conversationID == "" {
		conv, cerr := repo.CreateConversation(ctx, s.DB, userID, s.titleFromPrompt(prompt), resp.ThreadID)
		if cerr != nil {
			persistFailures.Inc()
			log.Error().Err(cerr).Msg("conversation create failed; turn not persisted")
			turnsTotal.WithLabelValues("ok").Inc()
			return &TurnReply{
				Role:     RoleAssistant,
				Content:  resp.Text,
				ID:       uuid.NewString(),
				ThreadID: resp.ThreadID,
			}, closedDone(), nil
		}
		conversationID = conv.ID
		conversationExists = true
		knownThreadID = conv.ThreadID
	}

	botID := uuid.NewString()
	done := s.persistTurn(ctx, persistInput{
		conversationID: conversationID,
		exists:         conversationExists,
		hadThreadID:    knownThreadID != "",
		newThreadID:    resp.ThreadID,
		userContent:    prompt,
		botID:          botID,
		botContent:     resp.Text,
	})

	threadID := knownThreadID
	if threadID == "" {
		threadID = resp.ThreadID
	}
	turnsTotal.WithLabelValues("ok").Inc()
	return &TurnReply{
		Role:           RoleAssistant,
		Content:        resp.Text,
		ID:             botID,
		ConversationID: conversationID,
		ThreadID:       threadID,
	}, done, nil
}

type persistInput struct {
	conversationID string
	exists         bool
	hadThreadID    bool
	newThreadID    string
	userContent    string
	botID          string
	botContent     string
}

// persistTurn runs the best-effort write phase detached from the request:
// conversation metadata first (thread attachment or activity bump), then the
// USER/BOT message pair in one transaction. The request context may already
// be done by the time this runs, so the task gets its own deadline.
func (s *ChatService) persistTurn(ctx context.Context, in persistInput) <-chan error {
	done := make(chan error, 1)
	timeout := s.PersistTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	go func() {
		defer cancel()
		defer close(done)

		err := func() error {
			if in.exists {
				if in.newThreadID != "" && !in.hadThreadID {
					if err := repo.AttachThreadID(bg, s.DB, in.conversationID, in.newThreadID); err != nil {
						return err
					}
				} else if err := repo.TouchConversation(bg, s.DB, in.conversationID); err != nil {
					return err
				}
			}
			return repo.AppendTurn(s.DB.WithContext(bg), in.conversationID, in.userContent, in.botID, in.botContent)
		}()

		if err != nil {
			persistFailures.Inc()
			log.Error().Err(err).
				Str("conversation_id", in.conversationID).
				Msg("turn persistence failed; reply already sent")
		}
		done <- err
	}()
	return done
}

// lastUserMessage validates the turn and extracts the outbound query text.
func (s *ChatService) lastUserMessage(in TurnInput) (string, error) {
	if len(in.Messages) == 0 {
		return "", ErrEmptyMessage
	}
	prompt := strings.TrimSpace(in.Messages[len(in.Messages)-1].Content)
	if prompt == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return "", ErrTooLong
	}
	return prompt, nil
}

// titleFromPrompt derives a new conversation's title: a fixed-length prefix
// of the first message with an ellipsis marker. The truncation is rune-safe
// and deterministic so retries produce identical titles.
func (s *ChatService) titleFromPrompt(prompt string) string {
	n := s.TitlePrefixRunes
	if n <= 0 {
		n = 50
	}
	runes := []rune(prompt)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}

// closedDone returns an already-closed completion channel for paths that
// persist nothing.
func closedDone() <-chan error {
	done := make(chan error)
	close(done)
	return done
}
