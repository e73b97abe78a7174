package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
	"github.com/teris-io/shortid"
)

// maxCreateAttempts bounds retries when a freshly generated id collides
// with an existing conversation.
const maxCreateAttempts = 3

type ConversationRepository interface {
	GetConversation(ctx context.Context, id string) (database.Conversation, error)
	GetConversationByParticipants(ctx context.Context, a, b string) (database.Conversation, error)
	CreateConversation(ctx context.Context, id, a, b string) (database.Conversation, error)
}

// Registry maps an unordered pair of users to their single conversation.
type Registry struct {
	db    ConversationRepository
	newId func() (string, error)
}

func NewRegistry(db ConversationRepository) *Registry {
	return &Registry{db: db, newId: shortid.Generate}
}

// canonicalPair orders the two identities so that (a, b) and (b, a) share
// one key.
func canonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// FindOrCreate returns the conversation between userA and userB, creating
// it on first contact. The uniqueness constraint on the pair is the source
// of truth: a duplicate-key error on insert means another request won the
// race, so the existing conversation is looked up instead.
func (r *Registry) FindOrCreate(ctx context.Context, userA, userB string) (types.Conversation, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return types.Conversation{}, &ValidationError{Field: "participants", Reason: "both participants are required"}
	}
	if userA == userB {
		return types.Conversation{}, &ValidationError{Field: "participants", Reason: "participants must differ"}
	}

	a, b := canonicalPair(userA, userB)

	conv, err := r.db.GetConversationByParticipants(ctx, a, b)
	if err == nil {
		return toConversation(conv), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return types.Conversation{}, fmt.Errorf("get conversation by participants: %w", err)
	}

	var lastErr error
	for range maxCreateAttempts {
		id, err := r.newId()
		if err != nil {
			return types.Conversation{}, fmt.Errorf("generate conversation id: %w", err)
		}

		conv, err := r.db.CreateConversation(ctx, id, a, b)
		if err == nil {
			return toConversation(conv), nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return types.Conversation{}, fmt.Errorf("create conversation: %w", err)
		}
		lastErr = err

		conv, err = r.db.GetConversationByParticipants(ctx, a, b)
		if err == nil {
			return toConversation(conv), nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return types.Conversation{}, fmt.Errorf("get conversation after conflict: %w", err)
		}
		// the conflict was on the generated id, not the pair
	}

	return types.Conversation{}, &ConflictError{Resource: "conversation", Err: lastErr}
}

func (r *Registry) Get(ctx context.Context, id string) (types.Conversation, error) {
	conv, err := r.db.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Conversation{}, &NotFoundError{Resource: "conversation", Id: id}
		}
		return types.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	return toConversation(conv), nil
}

func toConversation(c database.Conversation) types.Conversation {
	return types.Conversation{
		Id:           c.Id,
		Participants: [2]string{c.ParticipantA, c.ParticipantB},
		CreatedAt:    c.CreatedAt,
	}
}
