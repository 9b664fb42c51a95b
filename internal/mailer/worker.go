package mailer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/admingate/apiserver/internal/mq"
)

// Worker consumes mail jobs from the queue and delivers them via the sender.
type Worker struct {
	sender  Sender
	backend mq.Backend
	channel string
	logger  *slog.Logger
}

func NewWorker(sender Sender, backend mq.Backend, channel string, logger *slog.Logger) *Worker {
	return &Worker{
		sender:  sender,
		backend: backend,
		channel: channel,
		logger:  logger,
	}
}

// Run blocks consuming the mail channel until the context is cancelled.
// Send failures nack the delivery so the broker redelivers it.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mailer worker started", "channel", w.channel)
	return w.backend.Subscribe(ctx, w.channel, func(ctx context.Context, m mq.Message) error {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			// Malformed payloads would redeliver forever; drop them.
			w.logger.Error("mail job decode failed", "message_id", m.ID, "error", err)
			return nil
		}
		if err := w.sender.Send(msg); err != nil {
			w.logger.Error("mail send failed", "to", msg.To, "subject", msg.Subject, "error", err)
			return err
		}
		w.logger.Info("mail sent", "to", msg.To, "subject", msg.Subject)
		return nil
	})
}
