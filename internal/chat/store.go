package chat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type MessageRepository interface {
	CreateMessage(ctx context.Context, params database.CreateMessageParams) (database.Message, error)
	GetRecentMessages(ctx context.Context, conversationId string, limit int) ([]database.Message, error)
}

// Store is the append-only message log of every conversation.
type Store struct {
	db MessageRepository
}

func NewStore(db MessageRepository) *Store {
	return &Store{db: db}
}

// Append validates and persists one message. The creation timestamp is
// assigned by the database at insert time.
func (s *Store) Append(ctx context.Context, conversationId, senderId, senderName, text string) (types.Message, error) {
	params := database.CreateMessageParams{
		ConversationId: strings.TrimSpace(conversationId),
		SenderId:       strings.TrimSpace(senderId),
		SenderName:     strings.TrimSpace(senderName),
		Text:           strings.TrimSpace(text),
	}

	switch {
	case params.ConversationId == "":
		return types.Message{}, &ValidationError{Field: "conversation_id", Reason: "required"}
	case params.Text == "":
		return types.Message{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	case params.SenderId == "":
		return types.Message{}, &ValidationError{Field: "sender_id", Reason: "required"}
	case params.SenderName == "":
		return types.Message{}, &ValidationError{Field: "sender_name", Reason: "required"}
	}

	msg, err := s.db.CreateMessage(ctx, params)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Message{}, &NotFoundError{Resource: "conversation", Id: params.ConversationId}
		}
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	return toMessage(msg), nil
}

// RecentHistory returns up to limit of the newest messages, oldest first.
// A non-positive limit selects DefaultHistoryLimit and limits above
// MaxHistoryLimit are clamped.
func (s *Store) RecentHistory(ctx context.Context, conversationId string, limit int) ([]types.Message, error) {
	limit = normalizeLimit(limit)

	dbMessages, err := s.db.GetRecentMessages(ctx, conversationId, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, toMessage(m))
	}

	// newest first to pick the window, then oldest first for delivery
	slices.SortStableFunc(messages, func(a, b types.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Id, a.Id)
	})
	if len(messages) > limit {
		messages = messages[:limit]
	}
	slices.Reverse(messages)

	return messages, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		SenderName:     m.SenderName,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
	}
}
