package domain

import (
	"context"
)

// EventBus defines the interface for screening event notifications.
// Supports Go channels (single node) or NATS (shared deployments).
// Events are advisory: screening results are returned synchronously to the
// caller and never depend on delivery.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
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
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for screening notifications.
const (
	TopicScreeningCompleted = "kestrel.screening.completed"
	TopicCustomerAlert      = "kestrel.customer.alert"
	TopicRefDataReloaded    = "kestrel.refdata.reloaded"
)

// ScreeningCompletedEvent is the payload published after a screening run.
type ScreeningCompletedEvent struct {
	DatasetID        string         `json:"datasetId"`
	Rules            []string       `json:"rules"`
	CustomerID       string         `json:"customerId,omitempty"`
	FlaggedPerRule   map[string]int `json:"flaggedPerRule"`
	FlaggedCustomers int            `json:"flaggedCustomers"`
}

// CustomerAlertEvent is published for each customer above the
// minimum-violation threshold of a screening run.
type CustomerAlertEvent struct {
	DatasetID  string   `json:"datasetId"`
	CustomerID string   `json:"customerId"`
	Rules      []string `json:"rules"`
}
