package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gferro/mediatext/internal/core/domain"
)

// TaskHandlerFunc processes one decoded task. A returned error dead-letters
// the message; there is no second attempt.
type TaskHandlerFunc func(ctx context.Context, task domain.Task) error

type consumerSpec struct {
	queue   string
	handler TaskHandlerFunc
}

// acknowledger is the slice of amqp.Delivery the handler needs; narrowed so
// the ack/reject policy is testable without a broker.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// SetupConsumer registers a handler on a dedicated channel with prefetch 1:
// messages within one queue are handled strictly sequentially, while each
// media-type queue may hold one in-flight message concurrently.
func (m *Manager) SetupConsumer(ctx context.Context, queue string, handler TaskHandlerFunc) error {
	m.consumersMu.Lock()
	m.consumers = append(m.consumers, consumerSpec{queue: queue, handler: handler})
	m.consumersMu.Unlock()

	return m.startConsumer(ctx, consumerSpec{queue: queue, handler: handler})
}

func (m *Manager) startConsumer(ctx context.Context, spec consumerSpec) error {
	ch, err := m.freshChannel()
	if err != nil {
		return err
	}
	if err := m.declareQueue(ch, spec.queue); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set prefetch on %s: %w", spec.queue, err)
	}

	deliveries, err := ch.Consume(spec.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("register consumer on %s: %w", spec.queue, err)
	}
	slog.Info("consumer active", "queue", spec.queue)

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					// Channel lost; the connection watcher re-registers
					// recorded consumers after reconnect.
					return
				}
				m.handleDelivery(ctx, spec.queue, d.Body, &d, spec.handler)
			}
		}
	}()
	return nil
}

// handleDelivery applies the per-message failure policy: malformed bodies
// and vanished source files are acked and discarded (nothing to retry),
// handler failures are rejected without requeue and land in the DLQ.
func (m *Manager) handleDelivery(ctx context.Context, queue string, body []byte, ack acknowledger, handler TaskHandlerFunc) {
	var task domain.Task
	if err := json.Unmarshal(body, &task); err != nil {
		slog.Error("discarding undecodable message", "queue", queue, "error", err)
		_ = ack.Ack(false)
		return
	}
	if err := task.Validate(); err != nil {
		slog.Error("discarding malformed task", "queue", queue, "error", err)
		_ = ack.Ack(false)
		return
	}
	if _, err := os.Stat(task.FilePath); err != nil {
		slog.Warn("source file missing, treating task as resolved",
			"queue", queue, "file", task.FilePath)
		_ = ack.Ack(false)
		return
	}

	slog.Info("processing task", "queue", queue, "file", task.FileName)
	if err := handler(ctx, task); err != nil {
		slog.Error("task failed, dead-lettering",
			"queue", queue, "file", task.FileName, "error", err)
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
}

// watchConnection redials after a transport-level connection loss and
// re-registers every recorded consumer. Task-level semantics are untouched:
// unacked deliveries are redelivered by the broker.
func (m *Manager) watchConnection(ctx context.Context) {
	for {
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn == nil {
			return
		}

		closeErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok || closeErr == nil || m.isClosed() || ctx.Err() != nil {
			return
		}
		slog.Warn("broker connection lost, reconnecting", "error", closeErr)

		if err := m.connect(ctx); err != nil {
			slog.Error("broker reconnect exhausted", "error", err)
			return
		}

		m.consumersMu.Lock()
		specs := make([]consumerSpec, len(m.consumers))
		copy(specs, m.consumers)
		m.consumersMu.Unlock()

		for _, spec := range specs {
			if err := m.startConsumer(ctx, spec); err != nil {
				slog.Error("re-register consumer failed", "queue", spec.queue, "error", err)
			}
		}
	}
}
