package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultChannelPrefix = "chat:room:"

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publica en un canal por sala para que todas las instancias
// con un RedisBridge entreguen el evento a sus conexiones locales.
type RedisPublisher struct {
	client redisPublishClient
	prefix string
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: defaultChannelPrefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, room, event string, payload any) error {
	encoded, err := json.Marshal(Envelope{Room: room, Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return p.client.Publish(ctx, p.prefix+room, encoded).Err()
}

// RedisBridge reenvia al Hub local lo publicado en los canales de sala.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
	prefix string
}

func NewRedisBridge(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, logger: logger, prefix: defaultChannelPrefix}
}

// Run se suscribe por patron y bloquea hasta que ctx termina.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.forward(ctx, msg.Channel, msg.Payload); err != nil {
				b.logger.Warn("redis bridge forward", zap.String("channel", msg.Channel), zap.Error(err))
			}
		}
	}
}

func (b *RedisBridge) forward(ctx context.Context, channel, payload string) error {
	var env wireEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	room := strings.TrimPrefix(channel, b.prefix)
	if env.Room == "" {
		env.Room = room
	}
	if env.Room != room {
		return fmt.Errorf("envelope room %q does not match channel %q", env.Room, channel)
	}
	return b.hub.Broadcast(ctx, Envelope{Room: env.Room, Event: env.Event, Payload: env.Payload})
}
