package push

import (
	"context"
	"testing"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionsRegister(t *testing.T) {
	tcases := []struct {
		name     string
		userId   string
		endpoint string
		keys     types.PushKeys
		valid    bool
	}{
		{"valid", "u1", " https://push.example/1 ", types.PushKeys{P256dh: "p", Auth: "a"}, true},
		{"missing endpoint", "u1", "", types.PushKeys{P256dh: "p", Auth: "a"}, false},
		{"missing p256dh", "u1", "https://push.example/1", types.PushKeys{Auth: "a"}, false},
		{"missing auth", "u1", "https://push.example/1", types.PushKeys{P256dh: "p"}, false},
		{"missing user", "", "https://push.example/1", types.PushKeys{P256dh: "p", Auth: "a"}, false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockGoSocialRepository{}
			defer db.AssertExpectations(t)

			if tc.valid {
				db.On("UpsertPushSubscription", database.PushSubscription{
					Endpoint: "https://push.example/1",
					UserId:   "u1",
					P256dh:   "p",
					Auth:     "a",
				}).Return(database.PushSubscription{
					Endpoint: "https://push.example/1",
					UserId:   "u1",
					P256dh:   "p",
					Auth:     "a",
				}, nil).Once()
			}

			sub, err := NewSubscriptions(db).Register(context.Background(), tc.userId, tc.endpoint, tc.keys)
			if !tc.valid {
				assert.ErrorIs(t, err, ErrInvalidSubscription)
				db.AssertNotCalled(t, "UpsertPushSubscription", mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "https://push.example/1", sub.Endpoint)
			assert.Equal(t, types.PushKeys{P256dh: "p", Auth: "a"}, sub.Keys)
		})
	}
}

func TestSubscriptionsForUsers(t *testing.T) {
	db := &database.MockGoSocialRepository{}
	defer db.AssertExpectations(t)
	db.On("ListPushSubscriptions", []string{"u1", "u2"}).Return([]database.PushSubscription{
		{Endpoint: "e1", UserId: "u1", P256dh: "p1", Auth: "a1"},
		{Endpoint: "e2", UserId: "u2", P256dh: "p2", Auth: "a2"},
	}, nil).Once()

	subs, err := NewSubscriptions(db).ForUsers(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, types.PushKeys{P256dh: "p2", Auth: "a2"}, subs[1].Keys)
}
