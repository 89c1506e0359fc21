package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (single node) or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `mapstructure:"type" json:"type"`

	ChannelBufferSize int `mapstructure:"channel_buffer_size" json:"channelBufferSize"`

	NATSUrl           string `mapstructure:"nats_url" json:"natsUrl"`
	NATSToken         string `mapstructure:"nats_token" json:"-"`
	NATSMaxReconnects int    `mapstructure:"nats_max_reconnects" json:"natsMaxReconnects"`
	NATSReconnectWait int    `mapstructure:"nats_reconnect_wait" json:"natsReconnectWait"` // seconds
}

// TopicDecision carries every decision returned by the evaluate endpoint.
const TopicDecision = "govguard.decision"
