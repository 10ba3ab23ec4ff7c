package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/browser/internal/config"
	"catalog/browser/internal/domain/event"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	fieldEventType = "event_type"
	fieldEventData = "event_data"

	maxStreamLen = 10000
	readBlock    = 5 * time.Second
	readBackoff  = time.Second
)

// Handler reacts to one change broadcast by any session.
type Handler func(ctx context.Context, changed *event.CategoryChanged) error

// Bus fans category changes out to every browsing session.
type Bus interface {
	Publish(ctx context.Context, e event.Event) (string, error) // Returns message ID
	Listen(ctx context.Context, handle Handler) error
}

type RedisBus struct {
	redisClient *redis.Client
	stream      string
}

func NewRedisBus(redisClient *redis.Client, cfg config.RedisConfig) *RedisBus {
	return &RedisBus{
		redisClient: redisClient,
		stream:      cfg.Stream,
	}
}

func (b *RedisBus) Publish(ctx context.Context, e event.Event) (string, error) {
	value, err := e.EventValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize event: %w", err)
	}

	messageID, err := b.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			fieldEventType: e.EventType(),
			fieldEventData: string(value),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add event to Redis stream %s: %w", b.stream, err)
	}

	log.Debugf("Added event %s to stream %s with message ID: %s", e.EventType(), b.stream, messageID)
	return messageID, nil
}

// Listen delivers every change published after the call until ctx is done.
// Every session reads the whole stream, so there is no consumer group.
func (b *RedisBus) Listen(ctx context.Context, handle Handler) error {
	last := "$"
	log.Infof("👂 Listening for category changes on %s", b.stream)

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := b.redisClient.XRead(ctx, &redis.XReadArgs{
			Streams: []string{b.stream, last},
			Count:   10,
			Block:   readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("⚠️ Failed to read from Redis stream %s: %v", b.stream, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readBackoff):
			}
			continue
		}

		for _, stream := range result {
			for _, msg := range stream.Messages {
				last = msg.ID

				changed, err := decodeMessage(msg)
				if err != nil {
					log.Warnf("⚠️ Skipping message %s: %v", msg.ID, err)
					continue
				}
				if err := handle(ctx, changed); err != nil {
					return fmt.Errorf("failed to handle message %s: %w", msg.ID, err)
				}
			}
		}
	}
}

func decodeMessage(msg redis.XMessage) (*event.CategoryChanged, error) {
	changed := &event.CategoryChanged{}
	if eventType, _ := msg.Values[fieldEventType].(string); eventType != changed.EventType() {
		return nil, fmt.Errorf("unexpected event type %q", eventType)
	}

	data, ok := msg.Values[fieldEventData].(string)
	if !ok {
		return nil, errors.New("missing event data")
	}

	changed, err := event.UnmarshalEvent[*event.CategoryChanged]([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return changed, nil
}
