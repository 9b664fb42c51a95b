package mailer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/admingate/apiserver/internal/mq"
)

// Dispatcher hands outbound mail off for delivery without blocking the
// caller's success path. Failures are logged on the dispatcher's own
// failure channel and never propagate to the triggering request.
type Dispatcher struct {
	sender  Sender
	backend mq.Backend
	channel string
	logger  *slog.Logger
}

// NewDispatcher builds a dispatcher. When backend is nil, messages are
// delivered on a goroutine through the sender; otherwise they are published
// to the configured channel for the mailer worker to consume.
func NewDispatcher(sender Sender, backend mq.Backend, channel string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		backend: backend,
		channel: channel,
		logger:  logger,
	}
}

// Dispatch queues the message for delivery and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if d.backend != nil {
		data, err := json.Marshal(msg)
		if err != nil {
			d.logger.Error("mail encode failed", "to", msg.To, "error", err)
			return
		}
		if _, err := d.backend.Publish(ctx, d.channel, data, map[string]string{"kind": "mail"}); err != nil {
			d.logger.Error("mail publish failed", "to", msg.To, "channel", d.channel, "error", err)
		}
		return
	}

	go func() {
		if err := d.sender.Send(msg); err != nil {
			d.logger.Error("mail send failed", "to", msg.To, "subject", msg.Subject, "error", err)
			return
		}
		d.logger.Info("mail sent", "to", msg.To, "subject", msg.Subject)
	}()
}
