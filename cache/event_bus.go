package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"stemboard/logger"
	"stemboard/model"

	"github.com/redis/go-redis/v9"
)

// EventChannel is the pub/sub channel board events travel on.
const EventChannel = "board:events"

// EventBus relays board events between server instances over Redis pub/sub.
type EventBus struct {
	client  *redis.Client
	channel string
}

// NewEventBus 创建事件总线
func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{client: client, channel: EventChannel}
}

// Publish sends event to every subscribed instance, including this one.
func (b *EventBus) Publish(ctx context.Context, event model.BoardEvent) error {
	if b.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	data, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe delivers events to handle until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, handle func(model.BoardEvent)) error {
	if b.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	sub := b.client.Subscribe(ctx, b.channel)
	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	defer sub.Close()

	logger.Info("Subscribed to board events", logger.String("channel", b.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				logger.Warn("Dropping malformed board event", logger.ErrorField(err))
				continue
			}
			handle(event)
		}
	}
}

// EncodeEvent is the wire form of a board event.
func EncodeEvent(event model.BoardEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses the wire form and rejects events without a workspace.
func DecodeEvent(data []byte) (model.BoardEvent, error) {
	var event model.BoardEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal board event: %w", err)
	}
	if event.WorkspaceID == "" || event.Type == "" {
		return event, fmt.Errorf("board event missing type or projectId")
	}
	return event, nil
}
