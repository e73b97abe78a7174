package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
)

func (db *PgGoSocialRepository) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, participant_a, participant_b, created_at FROM conversations WHERE id = $1 LIMIT 1",
		id,
	)

	var c Conversation
	err := row.Scan(&c.Id, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt)
	return c, classify(err)
}

// GetConversationByParticipants expects a and b already in canonical
// (ascending) order.
func (db *PgGoSocialRepository) GetConversationByParticipants(ctx context.Context, a, b string) (Conversation, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, participant_a, participant_b, created_at FROM conversations "+
			"WHERE participant_a = $1 AND participant_b = $2 LIMIT 1",
		a,
		b,
	)

	var c Conversation
	err := row.Scan(&c.Id, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt)
	return c, classify(err)
}

// CreateConversation returns ErrConflict when either the id or the
// participant pair already exists.
func (db *PgGoSocialRepository) CreateConversation(ctx context.Context, id, a, b string) (Conversation, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO conversations (id, participant_a, participant_b, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, participant_a, participant_b, created_at",
		id,
		a,
		b,
		time.Now().UTC(),
	)

	var c Conversation
	err := row.Scan(&c.Id, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt)
	return c, classify(err)
}

// CreateMessage leaves created_at to the database so the insert time is the
// ordering key.
func (db *PgGoSocialRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (conversation_id, sender_id, sender_name, text) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, conversation_id, sender_id, sender_name, text, created_at",
		params.ConversationId,
		params.SenderId,
		params.SenderName,
		params.Text,
	)

	var m Message
	err := row.Scan(&m.Id, &m.ConversationId, &m.SenderId, &m.SenderName, &m.Text, &m.CreatedAt)
	return m, classify(err)
}

// GetRecentMessages returns the newest limit messages, newest first.
func (db *PgGoSocialRepository) GetRecentMessages(ctx context.Context, conversationId string, limit int) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, conversation_id, sender_id, sender_name, text, created_at FROM messages "+
			"WHERE conversation_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		conversationId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.ConversationId, &m.SenderId, &m.SenderName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// UpsertPushSubscription makes the endpoint belong to sub.UserId, replacing
// any previous owner and keys.
func (db *PgGoSocialRepository) UpsertPushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO push_subscriptions (endpoint, user_id, p256dh, auth, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) "+
			"ON CONFLICT (endpoint) DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, "+
			"auth = EXCLUDED.auth, updated_at = EXCLUDED.updated_at "+
			"RETURNING endpoint, user_id, p256dh, auth, created_at, updated_at",
		sub.Endpoint,
		sub.UserId,
		sub.P256dh,
		sub.Auth,
		now,
	)

	var s PushSubscription
	err := row.Scan(&s.Endpoint, &s.UserId, &s.P256dh, &s.Auth, &s.CreatedAt, &s.UpdatedAt)
	return s, classify(err)
}

func (db *PgGoSocialRepository) ListPushSubscriptions(ctx context.Context, userIds []string) ([]PushSubscription, error) {
	subs := make([]PushSubscription, 0)
	if len(userIds) == 0 {
		return subs, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT endpoint, user_id, p256dh, auth, created_at, updated_at FROM push_subscriptions "+
			"WHERE user_id = ANY($1)",
		pq.Array(userIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.Endpoint, &s.UserId, &s.P256dh, &s.Auth, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, s)
	}

	return subs, rows.Err()
}

// conversationLockClass namespaces the advisory locks taken per conversation.
const conversationLockClass = 7101

// LockConversation takes a transaction-scoped advisory lock keyed by the
// conversation id. Ending the transaction releases it, so a broken
// connection can never keep the lock.
func (db *PgGoSocialRepository) LockConversation(ctx context.Context, conversationId string) (func(), error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock($1, hashtext($2))",
		conversationLockClass,
		conversationId,
	); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("advisory lock: %w", err)
	}

	return func() { tx.Rollback() }, nil
}
