package types

import (
	"slices"
	"time"
)

type User struct {
	Id           string     `json:"id"`
	Name         string     `json:"name"`
	EmailAddress string     `json:"email,omitempty"`
	AvatarUrl    string     `json:"avatar_url"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty"`
}

// Profile is the current user's view of themselves, including the
// relationship lists they maintain.
type Profile struct {
	User
	LikedUserIds    []string `json:"liked_user_ids"`
	DislikedUserIds []string `json:"disliked_user_ids"`
	BlockedUserIds  []string `json:"blocked_user_ids"`
}

type Conversation struct {
	Id           string    `json:"id"`
	Participants [2]string `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c Conversation) HasParticipant(userId string) bool {
	return slices.Contains(c.Participants[:], userId)
}

// Others returns the participants that are not userId.
func (c Conversation) Others(userId string) []string {
	var others []string
	for _, p := range c.Participants {
		if p != "" && p != userId {
			others = append(others, p)
		}
	}
	return others
}

type Message struct {
	Id             int64     `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	UserId    string    `json:"user_id"`
	Keys      PushKeys  `json:"keys"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

type FriendRequest struct {
	Id          int64               `json:"id"`
	RequesterId string              `json:"requester_id"`
	RecipientId string              `json:"recipient_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type Post struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	ImageUrl  string    `json:"image_url"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}

type Upload struct {
	UploadUrl string `json:"upload_url"`
	PublicUrl string `json:"public_url"`
}
