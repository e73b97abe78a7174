package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

type HistoryProvider interface {
	RecentHistory(ctx context.Context, conversationId string, limit int) ([]types.Message, error)
}

// ConversationLocker serializes appends to one conversation across server
// instances. The returned release func must be called exactly once.
type ConversationLocker interface {
	LockConversation(ctx context.Context, conversationId string) (release func(), err error)
}

type Option func(*ChatServer)

func WithRelay(r Relay) Option {
	return func(cs *ChatServer) { cs.relay = r }
}

func WithRoomRegistry(r RoomRegistry) Option {
	return func(cs *ChatServer) { cs.rooms = r }
}

// WithConversationLocker makes SaveAndBroadcast also hold l's lock, so that
// instances sharing a relay publish in store order.
func WithConversationLocker(l ConversationLocker) Option {
	return func(cs *ChatServer) { cs.locker = l }
}

func WithHistoryLimit(n int) Option {
	return func(cs *ChatServer) { cs.historyLimit = n }
}

// ChatServer delivers live messages to the sessions joined to a
// conversation. Appends and join history reads for one conversation are
// serialized so that members see messages in store order.
type ChatServer struct {
	log          *zap.Logger
	rooms        RoomRegistry
	history      HistoryProvider
	relay        Relay
	locker       ConversationLocker
	stats        stats.StatsProvider
	historyLimit int
	seq          *sequencer
	clients      map[*Client]struct{}
	clientsLock  sync.Mutex
}

func NewChatServer(logger *zap.Logger, history HistoryProvider, st stats.StatsProvider, opts ...Option) *ChatServer {
	cs := &ChatServer{
		log:     logger,
		rooms:   NewMemoryRooms(),
		history: history,
		stats:   st,
		seq:     newSequencer(),
		clients: make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(cs)
	}

	cs.stats.RegisterMetric(stats.ActiveSessions)
	cs.stats.RegisterMetric(stats.DroppedDeliveries)

	return cs
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.ActiveSessions)
	cs.log.Debug("session registered", zap.String("session_id", c.Id()), zap.String("user_id", c.user.Id))
}

func (cs *ChatServer) deregisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.stats.Decr(stats.ActiveSessions)
	cs.log.Debug("session deregistered", zap.String("session_id", c.Id()), zap.String("user_id", c.user.Id))
}

// Join adds s to the conversation room and queues the recent history to it
// as the join acknowledgement. If the history cannot be read the session is
// not joined.
func (cs *ChatServer) Join(ctx context.Context, s Session, conversationId string, reqId int) error {
	unlock := cs.seq.lock(conversationId)
	defer unlock()

	messages, err := cs.history.RecentHistory(ctx, conversationId, cs.historyLimit)
	if err != nil {
		return fmt.Errorf("recent history: %w", err)
	}

	cs.rooms.Join(conversationId, s)
	if !s.Queue(NewHistory(reqId, conversationId, messages)) {
		cs.stats.Incr(stats.DroppedDeliveries)
	}

	return nil
}

func (cs *ChatServer) Leave(s Session, conversationId string) {
	cs.rooms.Leave(conversationId, s)
}

func (cs *ChatServer) IsMember(s Session, conversationId string) bool {
	return cs.rooms.IsMember(conversationId, s)
}

// Disconnect removes s from every room it joined.
func (cs *ChatServer) Disconnect(s Session) {
	left := cs.rooms.LeaveAll(s)
	cs.log.Debug("session left rooms", zap.String("session_id", s.Id()), zap.Strings("conversations", left))
}

// SaveAndBroadcast runs save and publishes its result while holding the
// conversation's sequencing lock, and the cross-instance lock when one is
// configured.
func (cs *ChatServer) SaveAndBroadcast(ctx context.Context, conversationId string, save func(ctx context.Context) (types.Message, error)) (types.Message, error) {
	unlock := cs.seq.lock(conversationId)
	defer unlock()

	if cs.locker != nil {
		release, err := cs.locker.LockConversation(ctx, conversationId)
		if err != nil {
			return types.Message{}, fmt.Errorf("lock conversation: %w", err)
		}
		defer release()
	}

	msg, err := save(ctx)
	if err != nil {
		return types.Message{}, err
	}

	cs.Publish(ctx, msg)

	return msg, nil
}

// Publish hands msg to the relay when one is configured and delivers it
// locally otherwise, or when the relay rejects it.
func (cs *ChatServer) Publish(ctx context.Context, msg types.Message) {
	if cs.relay != nil {
		err := cs.relay.Publish(ctx, msg)
		if err == nil {
			return
		}
		cs.log.Warn("relay publish failed, delivering locally",
			zap.String("conversation_id", msg.ConversationId),
			zap.Int64("message_id", msg.Id),
			zap.Error(err),
		)
	}

	cs.deliver(msg)
}

func (cs *ChatServer) deliver(msg types.Message) {
	for _, s := range cs.rooms.Members(msg.ConversationId) {
		if !s.Queue(NewMessage(msg)) {
			cs.stats.Incr(stats.DroppedDeliveries)
			cs.log.Warn("dropped delivery",
				zap.String("session_id", s.Id()),
				zap.String("conversation_id", msg.ConversationId),
				zap.Int64("message_id", msg.Id),
			)
		}
	}
}

// Run consumes the relay until ctx is done. Without a relay it only waits.
func (cs *ChatServer) Run(ctx context.Context) error {
	if cs.relay == nil {
		<-ctx.Done()
		return nil
	}

	cs.log.Info("starting relay subscription")
	return cs.relay.Subscribe(ctx, cs.deliver)
}

// Shutdown stops every connected session.
func (cs *ChatServer) Shutdown() {
	cs.log.Info("stopping sessions")

	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
	}
}
