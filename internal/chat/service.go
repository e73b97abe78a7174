package chat

import (
	"context"
	"strings"
	"time"

	"github.com/npezzotti/gosocial/internal/push"
	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

// Broadcaster persists and publishes a message under the conversation's
// ordering lock.
type Broadcaster interface {
	SaveAndBroadcast(ctx context.Context, conversationId string, save func(ctx context.Context) (types.Message, error)) (types.Message, error)
}

// DefaultNotifyTimeout bounds the whole fan-out of one message.
const DefaultNotifyTimeout = 15 * time.Second

type Notifier interface {
	Notify(ctx context.Context, conv types.Conversation, msg types.Message) push.Report
}

// Service ties the store, the registry, live delivery and push
// notifications together. It is shared by the HTTP handlers and the
// websocket sessions.
type Service struct {
	log         *zap.Logger
	store       *Store
	registry    *Registry
	broadcaster Broadcaster
	notifier    Notifier
	stats       stats.StatsProvider

	// notifyTimeout applies to the fan-out context, which is detached from
	// the request.
	notifyTimeout time.Duration
}

// NewService wires a Service. notifier may be nil, which disables push
// notifications.
func NewService(logger *zap.Logger, store *Store, registry *Registry, broadcaster Broadcaster, notifier Notifier, st stats.StatsProvider) *Service {
	st.RegisterMetric(stats.MessagesSent)

	return &Service{
		log:         logger.Named("chat"),
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		notifier:    notifier,
		stats:       st,

		notifyTimeout: DefaultNotifyTimeout,
	}
}

func (s *Service) StartConversation(ctx context.Context, userA, userB string) (types.Conversation, error) {
	return s.registry.FindOrCreate(ctx, userA, userB)
}

func (s *Service) Conversation(ctx context.Context, conversationId string) (types.Conversation, error) {
	return s.registry.Get(ctx, conversationId)
}

func (s *Service) RecentHistory(ctx context.Context, conversationId string, limit int) ([]types.Message, error) {
	return s.store.RecentHistory(ctx, conversationId, limit)
}

// Send appends text from sender to the conversation, delivers it to the
// joined sessions and then notifies the other participants. Notification
// failures never fail the send.
func (s *Service) Send(ctx context.Context, conversationId string, sender types.User, text string) (types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return types.Message{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	conv, err := s.registry.Get(ctx, conversationId)
	if err != nil {
		return types.Message{}, err
	}
	if !conv.HasParticipant(sender.Id) {
		return types.Message{}, ErrNotParticipant
	}

	msg, err := s.broadcaster.SaveAndBroadcast(ctx, conv.Id, func(ctx context.Context) (types.Message, error) {
		return s.store.Append(ctx, conv.Id, sender.Id, sender.Name, text)
	})
	if err != nil {
		return types.Message{}, err
	}
	s.stats.Incr(stats.MessagesSent)

	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		report := s.notifier.Notify(notifyCtx, conv, msg)
		cancel()
		s.log.Debug("fan-out complete",
			zap.String("conversation_id", conv.Id),
			zap.Int64("message_id", msg.Id),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
		)
	}

	return msg, nil
}
