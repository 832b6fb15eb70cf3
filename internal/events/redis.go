package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"voice-memories-go/internal/logger"
)

// DefaultChannel is where status events are published.
const DefaultChannel = "memory:events"

type redisPublishAPI interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes JSON events on one pub/sub channel.
type RedisPublisher struct {
	client  redisPublishAPI
	channel string
}

func NewRedisPublisher(client redisPublishAPI, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// RedisSubscriber relays the pub/sub channel to SSE listeners.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisSubscriber(client *redis.Client, channel string, log *logger.Logger) *RedisSubscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSubscriber{client: client, channel: channel, log: log.Component("redis-subscriber")}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	ps := s.client.Subscribe(ctx, s.channel)
	// Wait for the subscription confirmation so connection errors surface here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.WithError(err).Warn("dropping malformed event")
					continue
				}
				select {
				case out <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
