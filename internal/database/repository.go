package database

import "context"

type GoSocialRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id string) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)
	ListAccounts(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error)
	TouchLastActive(ctx context.Context, id string) error

	ListRelationships(ctx context.Context, userId string) ([]Relationship, error)
	AddRelationship(ctx context.Context, userId, targetId string, kind RelationshipKind) error
	RemoveRelationship(ctx context.Context, userId, targetId string, kind RelationshipKind) error
	IsBlockedBetween(ctx context.Context, a, b string) (bool, error)

	GetFriendRequestBetween(ctx context.Context, a, b string) (FriendRequest, error)
	GetPendingFriendRequest(ctx context.Context, requesterId, recipientId string) (FriendRequest, error)
	CreateFriendRequest(ctx context.Context, requesterId, recipientId string) (FriendRequest, error)
	ReopenFriendRequest(ctx context.Context, id int64, requesterId, recipientId string) error
	UpdateFriendRequestStatus(ctx context.Context, id int64, status string) error
	DeletePendingFriendRequest(ctx context.Context, requesterId, recipientId string) error
	ListFriendRequests(ctx context.Context, userId string) ([]FriendRequest, error)

	CreatePost(ctx context.Context, params CreatePostParams) (Post, error)
	ListPosts(ctx context.Context) ([]Post, error)

	GetConversation(ctx context.Context, id string) (Conversation, error)
	GetConversationByParticipants(ctx context.Context, a, b string) (Conversation, error)
	CreateConversation(ctx context.Context, id, a, b string) (Conversation, error)

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetRecentMessages(ctx context.Context, conversationId string, limit int) ([]Message, error)

	UpsertPushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error)
	ListPushSubscriptions(ctx context.Context, userIds []string) ([]PushSubscription, error)
}
