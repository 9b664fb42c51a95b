package mq

import (
	"context"
	"fmt"

	"github.com/admingate/apiserver/config"
)

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a nack/redelivery.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations used by the mail dispatcher.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// NewBackend constructs the broker selected by config. It returns nil
// (no error) when no backend is configured; callers fall back to
// in-process dispatch.
func NewBackend(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch cfg.Backend {
	case "", config.MQBackendNone:
		return nil, nil
	case config.MQBackendRabbitMQ:
		return NewRabbitBackend(cfg.RabbitMQ)
	case config.MQBackendPubSub:
		return NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
