package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/gosocial/internal/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay carries published messages between server instances. Every
// instance, including the publisher, receives each message once through
// Subscribe.
type Relay interface {
	Publish(ctx context.Context, msg types.Message) error
	Subscribe(ctx context.Context, deliver func(types.Message)) error
	Close() error
}

const DefaultRelayChannel = "gosocial:messages"

type relayEnvelope struct {
	Message types.Message `json:"message"`
}

// RedisRelay is a Relay over a single redis pub/sub channel.
type RedisRelay struct {
	log     *zap.Logger
	client  *redis.Client
	channel string
}

func NewRedisRelay(logger *zap.Logger, url, channel string) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if channel == "" {
		channel = DefaultRelayChannel
	}

	logger.Info("redis relay connected", zap.String("addr", opts.Addr), zap.String("channel", channel))

	return &RedisRelay{
		log:     logger,
		client:  client,
		channel: channel,
	}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, msg types.Message) error {
	payload, err := json.Marshal(relayEnvelope{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}

	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe blocks, handing every relayed message to deliver, until ctx is
// done or the subscription fails.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(types.Message)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %q: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var env relayEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.Warn("dropping malformed relay payload", zap.Error(err))
				continue
			}
			deliver(env.Message)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
