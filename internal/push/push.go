package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
)

var ErrInvalidSubscription = errors.New("invalid subscription")

// Payload is what the browser service worker receives. The chatId key is
// read by the worker to open the conversation on click.
type Payload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	ChatId string `json:"chatId"`
}

// Dispatcher delivers one payload to one subscription. Implementations make
// a single attempt and report failure as an error.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub types.PushSubscription, payload []byte) error
}

// DispatchError is a failed delivery to a single subscription.
type DispatchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch to %s failed with status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dispatch to %s failed: %v", e.Endpoint, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

type SubscriptionRepository interface {
	UpsertPushSubscription(ctx context.Context, sub database.PushSubscription) (database.PushSubscription, error)
	ListPushSubscriptions(ctx context.Context, userIds []string) ([]database.PushSubscription, error)
}

// Subscriptions maps users to their registered push endpoints.
type Subscriptions struct {
	db SubscriptionRepository
}

func NewSubscriptions(db SubscriptionRepository) *Subscriptions {
	return &Subscriptions{db: db}
}

// Register stores the endpoint for userId. Registering an endpoint that is
// already known moves it to userId and replaces its keys.
func (s *Subscriptions) Register(ctx context.Context, userId, endpoint string, keys types.PushKeys) (types.PushSubscription, error) {
	sub := database.PushSubscription{
		Endpoint: strings.TrimSpace(endpoint),
		UserId:   userId,
		P256dh:   strings.TrimSpace(keys.P256dh),
		Auth:     strings.TrimSpace(keys.Auth),
	}

	if userId == "" || sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return types.PushSubscription{}, fmt.Errorf("%w: endpoint and keys are required", ErrInvalidSubscription)
	}

	saved, err := s.db.UpsertPushSubscription(ctx, sub)
	if err != nil {
		return types.PushSubscription{}, fmt.Errorf("upsert push subscription: %w", err)
	}

	return toSubscription(saved), nil
}

func (s *Subscriptions) ForUsers(ctx context.Context, userIds []string) ([]types.PushSubscription, error) {
	dbSubs, err := s.db.ListPushSubscriptions(ctx, userIds)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}

	subs := make([]types.PushSubscription, 0, len(dbSubs))
	for _, sub := range dbSubs {
		subs = append(subs, toSubscription(sub))
	}

	return subs, nil
}

func toSubscription(s database.PushSubscription) types.PushSubscription {
	return types.PushSubscription{
		Endpoint:  s.Endpoint,
		UserId:    s.UserId,
		Keys:      types.PushKeys{P256dh: s.P256dh, Auth: s.Auth},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
