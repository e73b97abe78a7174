package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/npezzotti/gosocial/internal/database"
)

// fakeRepo is an in-memory repository that enforces the same uniqueness
// rules as the conversations and messages tables.
type fakeRepo struct {
	mu            sync.Mutex
	conversations map[string]database.Conversation
	messages      []database.Message
	nextMessageId int64
	creates       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{conversations: make(map[string]database.Conversation)}
}

func (f *fakeRepo) GetConversation(ctx context.Context, id string) (database.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.conversations[id]
	if !ok {
		return database.Conversation{}, database.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) GetConversationByParticipants(ctx context.Context, a, b string) (database.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.conversations {
		if c.ParticipantA == a && c.ParticipantB == b {
			return c, nil
		}
	}
	return database.Conversation{}, database.ErrNotFound
}

func (f *fakeRepo) CreateConversation(ctx context.Context, id, a, b string) (database.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++
	if a >= b {
		return database.Conversation{}, fmt.Errorf("participants not canonical: %q %q", a, b)
	}
	if _, ok := f.conversations[id]; ok {
		return database.Conversation{}, fmt.Errorf("%w: conversations_pkey", database.ErrConflict)
	}
	for _, c := range f.conversations {
		if c.ParticipantA == a && c.ParticipantB == b {
			return database.Conversation{}, fmt.Errorf("%w: conversations_participants_key", database.ErrConflict)
		}
	}

	c := database.Conversation{Id: id, ParticipantA: a, ParticipantB: b, CreatedAt: time.Now()}
	f.conversations[id] = c
	return c, nil
}

func (f *fakeRepo) CreateMessage(ctx context.Context, params database.CreateMessageParams) (database.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.conversations[params.ConversationId]; !ok {
		return database.Message{}, fmt.Errorf("%w: messages_conversation_id_fkey", database.ErrNotFound)
	}

	f.nextMessageId++
	m := database.Message{
		Id:             f.nextMessageId,
		ConversationId: params.ConversationId,
		SenderId:       params.SenderId,
		SenderName:     params.SenderName,
		Text:           params.Text,
		CreatedAt:      time.Now(),
	}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeRepo) GetRecentMessages(ctx context.Context, conversationId string, limit int) ([]database.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []database.Message
	for _, m := range slices.Backward(f.messages) {
		if m.ConversationId == conversationId {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) conversationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.conversations)
}
