package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const accountColumns = "id, name, email, password_hash, avatar_url, last_active_at, created_at, updated_at"

func scanAccount(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.AvatarUrl,
		&u.LastActiveAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgGoSocialRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (id, name, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+accountColumns,
		uuid.NewString(),
		params.Name,
		params.EmailAddress,
		params.PasswordHash,
		now,
		now,
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

func (db *PgGoSocialRepository) GetAccountById(ctx context.Context, id string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

func (db *PgGoSocialRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

func (db *PgGoSocialRepository) ListAccounts(ctx context.Context) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// UpdateProfile only overwrites the fields that are non-empty in params.
func (db *PgGoSocialRepository) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE accounts SET "+
			"name = COALESCE(NULLIF($2, ''), name), "+
			"avatar_url = COALESCE(NULLIF($3, ''), avatar_url), "+
			"updated_at = $4 "+
			"WHERE id = $1 RETURNING "+accountColumns,
		params.UserId,
		params.Name,
		params.AvatarUrl,
		time.Now().UTC(),
	)

	u, err := scanAccount(row)
	return u, classify(err)
}

func (db *PgGoSocialRepository) TouchLastActive(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE accounts SET last_active_at = $2 WHERE id = $1",
		id,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgGoSocialRepository) ListRelationships(ctx context.Context, userId string) ([]Relationship, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id, target_id, kind, created_at FROM relationships WHERE user_id = $1 ORDER BY created_at",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rels := make([]Relationship, 0)
	for rows.Next() {
		var rel Relationship
		if err := rows.Scan(&rel.UserId, &rel.TargetId, &rel.Kind, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}

	return rels, rows.Err()
}

// AddRelationship records kind from userId towards targetId. Like and dislike
// exclude each other, so adding one removes the other in the same transaction.
func (db *PgGoSocialRepository) AddRelationship(ctx context.Context, userId, targetId string, kind RelationshipKind) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO relationships (user_id, target_id, kind, created_at) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (user_id, target_id, kind) DO NOTHING",
		userId,
		targetId,
		kind,
		time.Now().UTC(),
	)
	if err != nil {
		return classify(err)
	}

	var opposite RelationshipKind
	switch kind {
	case RelationshipLike:
		opposite = RelationshipDislike
	case RelationshipDislike:
		opposite = RelationshipLike
	}

	if opposite != "" {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM relationships WHERE user_id = $1 AND target_id = $2 AND kind = $3",
			userId,
			targetId,
			opposite,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *PgGoSocialRepository) RemoveRelationship(ctx context.Context, userId, targetId string, kind RelationshipKind) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM relationships WHERE user_id = $1 AND target_id = $2 AND kind = $3",
		userId,
		targetId,
		kind,
	)

	return err
}

func (db *PgGoSocialRepository) IsBlockedBetween(ctx context.Context, a, b string) (bool, error) {
	var blocked bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM relationships WHERE kind = 'block' AND "+
			"((user_id = $1 AND target_id = $2) OR (user_id = $2 AND target_id = $1)))",
		a,
		b,
	).Scan(&blocked)

	return blocked, err
}

const friendRequestColumns = "id, requester_id, recipient_id, status, created_at, updated_at"

func scanFriendRequest(row interface{ Scan(...any) error }) (FriendRequest, error) {
	var fr FriendRequest
	err := row.Scan(&fr.Id, &fr.RequesterId, &fr.RecipientId, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt)
	return fr, err
}

func (db *PgGoSocialRepository) GetFriendRequestBetween(ctx context.Context, a, b string) (FriendRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests "+
			"WHERE (requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1) LIMIT 1",
		a,
		b,
	)

	fr, err := scanFriendRequest(row)
	return fr, classify(err)
}

func (db *PgGoSocialRepository) GetPendingFriendRequest(ctx context.Context, requesterId, recipientId string) (FriendRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests "+
			"WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending' LIMIT 1",
		requesterId,
		recipientId,
	)

	fr, err := scanFriendRequest(row)
	return fr, classify(err)
}

func (db *PgGoSocialRepository) CreateFriendRequest(ctx context.Context, requesterId, recipientId string) (FriendRequest, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO friend_requests (requester_id, recipient_id, status, created_at, updated_at) "+
			"VALUES ($1, $2, 'pending', $3, $4) RETURNING "+friendRequestColumns,
		requesterId,
		recipientId,
		now,
		now,
	)

	fr, err := scanFriendRequest(row)
	return fr, classify(err)
}

func (db *PgGoSocialRepository) ReopenFriendRequest(ctx context.Context, id int64, requesterId, recipientId string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE friend_requests SET requester_id = $2, recipient_id = $3, status = 'pending', updated_at = $4 WHERE id = $1",
		id,
		requesterId,
		recipientId,
		time.Now().UTC(),
	)

	return classify(err)
}

func (db *PgGoSocialRepository) UpdateFriendRequestStatus(ctx context.Context, id int64, status string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE friend_requests SET status = $2, updated_at = $3 WHERE id = $1",
		id,
		status,
		time.Now().UTC(),
	)

	return err
}

func (db *PgGoSocialRepository) DeletePendingFriendRequest(ctx context.Context, requesterId, recipientId string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM friend_requests WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending'",
		requesterId,
		recipientId,
	)

	return err
}

func (db *PgGoSocialRepository) ListFriendRequests(ctx context.Context, userId string) ([]FriendRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests "+
			"WHERE requester_id = $1 OR recipient_id = $1 ORDER BY updated_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]FriendRequest, 0)
	for rows.Next() {
		fr, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, fr)
	}

	return requests, rows.Err()
}

func (db *PgGoSocialRepository) CreatePost(ctx context.Context, params CreatePostParams) (Post, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO posts (id, user_id, image_url, caption, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, user_id, image_url, caption, created_at",
		uuid.NewString(),
		params.UserId,
		params.ImageUrl,
		params.Caption,
		time.Now().UTC(),
	)

	var p Post
	err := row.Scan(&p.Id, &p.UserId, &p.ImageUrl, &p.Caption, &p.CreatedAt)
	return p, classify(err)
}

func (db *PgGoSocialRepository) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, user_id, image_url, caption, created_at FROM posts ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.Id, &p.UserId, &p.ImageUrl, &p.Caption, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}

	return posts, rows.Err()
}

var _ GoSocialRepository = (*PgGoSocialRepository)(nil)
