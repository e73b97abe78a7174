package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockGoSocialRepository struct {
	mock.Mock
}

func (m *MockGoSocialRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGoSocialRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) GetAccountById(ctx context.Context, id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) ListAccounts(ctx context.Context) ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockGoSocialRepository) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) TouchLastActive(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGoSocialRepository) ListRelationships(ctx context.Context, userId string) ([]Relationship, error) {
	args := m.Called(userId)
	return args.Get(0).([]Relationship), args.Error(1)
}
func (m *MockGoSocialRepository) AddRelationship(ctx context.Context, userId, targetId string, kind RelationshipKind) error {
	args := m.Called(userId, targetId, kind)
	return args.Error(0)
}
func (m *MockGoSocialRepository) RemoveRelationship(ctx context.Context, userId, targetId string, kind RelationshipKind) error {
	args := m.Called(userId, targetId, kind)
	return args.Error(0)
}
func (m *MockGoSocialRepository) IsBlockedBetween(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(a, b)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoSocialRepository) GetFriendRequestBetween(ctx context.Context, a, b string) (FriendRequest, error) {
	args := m.Called(a, b)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockGoSocialRepository) GetPendingFriendRequest(ctx context.Context, requesterId, recipientId string) (FriendRequest, error) {
	args := m.Called(requesterId, recipientId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockGoSocialRepository) CreateFriendRequest(ctx context.Context, requesterId, recipientId string) (FriendRequest, error) {
	args := m.Called(requesterId, recipientId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockGoSocialRepository) ReopenFriendRequest(ctx context.Context, id int64, requesterId, recipientId string) error {
	args := m.Called(id, requesterId, recipientId)
	return args.Error(0)
}
func (m *MockGoSocialRepository) UpdateFriendRequestStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}
func (m *MockGoSocialRepository) DeletePendingFriendRequest(ctx context.Context, requesterId, recipientId string) error {
	args := m.Called(requesterId, recipientId)
	return args.Error(0)
}
func (m *MockGoSocialRepository) ListFriendRequests(ctx context.Context, userId string) ([]FriendRequest, error) {
	args := m.Called(userId)
	return args.Get(0).([]FriendRequest), args.Error(1)
}
func (m *MockGoSocialRepository) CreatePost(ctx context.Context, params CreatePostParams) (Post, error) {
	args := m.Called(params)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockGoSocialRepository) ListPosts(ctx context.Context) ([]Post, error) {
	args := m.Called()
	return args.Get(0).([]Post), args.Error(1)
}
func (m *MockGoSocialRepository) GetConversation(ctx context.Context, id string) (Conversation, error) {
	args := m.Called(id)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockGoSocialRepository) GetConversationByParticipants(ctx context.Context, a, b string) (Conversation, error) {
	args := m.Called(a, b)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockGoSocialRepository) CreateConversation(ctx context.Context, id, a, b string) (Conversation, error) {
	args := m.Called(id, a, b)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockGoSocialRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGoSocialRepository) GetRecentMessages(ctx context.Context, conversationId string, limit int) ([]Message, error) {
	args := m.Called(conversationId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockGoSocialRepository) UpsertPushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error) {
	args := m.Called(sub)
	return args.Get(0).(PushSubscription), args.Error(1)
}
func (m *MockGoSocialRepository) ListPushSubscriptions(ctx context.Context, userIds []string) ([]PushSubscription, error) {
	args := m.Called(userIds)
	return args.Get(0).([]PushSubscription), args.Error(1)
}

var _ GoSocialRepository = (*MockGoSocialRepository)(nil)
