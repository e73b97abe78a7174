package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           string
	Name         string
	EmailAddress string
	PasswordHash string
	AvatarUrl    string
	LastActiveAt sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RelationshipKind string

const (
	RelationshipLike    RelationshipKind = "like"
	RelationshipDislike RelationshipKind = "dislike"
	RelationshipBlock   RelationshipKind = "block"
)

type Relationship struct {
	UserId    string
	TargetId  string
	Kind      RelationshipKind
	CreatedAt time.Time
}

type FriendRequest struct {
	Id          int64
	RequesterId string
	RecipientId string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Conversation struct {
	Id           string
	ParticipantA string
	ParticipantB string
	CreatedAt    time.Time
}

type Message struct {
	Id             int64
	ConversationId string
	SenderId       string
	SenderName     string
	Text           string
	CreatedAt      time.Time
}

type PushSubscription struct {
	Endpoint  string
	UserId    string
	P256dh    string
	Auth      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Post struct {
	Id        string
	UserId    string
	ImageUrl  string
	Caption   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Name         string
	EmailAddress string
	PasswordHash string
}

type UpdateProfileParams struct {
	UserId    string
	Name      string
	AvatarUrl string
}

type CreateMessageParams struct {
	ConversationId string
	SenderId       string
	SenderName     string
	Text           string
}

type CreatePostParams struct {
	UserId   string
	ImageUrl string
	Caption  string
}
