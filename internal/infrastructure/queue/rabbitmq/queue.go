package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/infrastructure/resilience"
)

// DeadLetterExchange receives every rejected or expired task message,
// routed by "{queue}_failed".
const DeadLetterExchange = "dlx"

// DeadLetterQueue names the paired DLQ for a primary task queue.
func DeadLetterQueue(queue string) string {
	return queue + "_failed"
}

type Options struct {
	// MessageTTL is the per-message time-to-live on every task queue. It is
	// the only timeout in the pipeline.
	MessageTTL  time.Duration
	MaxPriority int

	// ConnectRetries bounds both the initial dial and every reconnect
	// window; ReconnectWait seeds the exponential backoff between attempts.
	ConnectRetries int
	ReconnectWait  time.Duration

	ResilienceExecutor *resilience.Executor
}

func (o Options) withDefaults() Options {
	if o.MessageTTL <= 0 {
		o.MessageTTL = time.Hour
	}
	if o.MaxPriority <= 0 {
		o.MaxPriority = 10
	}
	if o.ConnectRetries <= 0 {
		o.ConnectRetries = 10
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	return o
}

// Manager owns the broker connection and the durable task-queue topology:
// one "{media}_processing" queue plus one "{media}_processing_failed" DLQ
// per media type, all dead-lettered through a direct exchange.
type Manager struct {
	url  string
	opts Options

	// amqp channels are not safe for concurrent use; the publisher channel
	// is shared between orchestrator tasks and guarded here. Consumers get
	// dedicated channels.
	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel

	consumersMu sync.Mutex
	consumers   []consumerSpec

	closedMu sync.Mutex
	closed   bool

	executor *resilience.Executor
}

func New(url string, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		url:      url,
		opts:     opts,
		executor: opts.ResilienceExecutor,
	}
}

// QueueNames lists the primary task queues in declaration order.
func QueueNames() []string {
	media := domain.MediaTypes()
	names := make([]string, 0, len(media))
	for _, m := range media {
		names = append(names, m.QueueName())
	}
	return names
}

// Initialize dials the broker, declares the full topology and purges every
// queue. The purge is a fresh-start policy: a restart begins from empty
// queues rather than replaying stale tasks.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.connect(ctx); err != nil {
		return err
	}
	slog.Info("purging task queues on startup")
	if err := m.PurgeQueues(); err != nil {
		return fmt.Errorf("purge queues: %w", err)
	}
	go m.watchConnection(ctx)
	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := m.declareTopology(ch); err != nil {
		_ = conn.Close()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.pubCh = ch
	m.mu.Unlock()
	return nil
}

func (m *Manager) dial(ctx context.Context) (*amqp.Connection, error) {
	wait := m.opts.ReconnectWait
	var lastErr error

	for attempt := 1; attempt <= m.opts.ConnectRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := amqp.Dial(m.url)
		if err == nil {
			slog.Info("connected to broker", "attempt", attempt)
			return conn, nil
		}
		lastErr = err
		slog.Warn("broker dial failed",
			"attempt", attempt,
			"max_attempts", m.opts.ConnectRetries,
			"backoff", wait.String(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
	return nil, fmt.Errorf("broker dial after %d attempts: %w", m.opts.ConnectRetries, lastErr)
}

func (m *Manager) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}
	for _, queue := range QueueNames() {
		if err := m.declareQueue(ch, queue); err != nil {
			return err
		}
	}
	return nil
}

// declareQueue declares one durable task queue with its dead-letter routing
// and the paired DLQ bound to the dead-letter exchange.
func (m *Manager) declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-message-ttl":             m.opts.MessageTTL.Milliseconds(),
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": DeadLetterQueue(queue),
		"x-max-priority":            int32(m.opts.MaxPriority),
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	dlq := DeadLetterQueue(queue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, dlq, DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue %s: %w", dlq, err)
	}
	return nil
}

// EnqueueTask publishes one durable task to "{media}_processing" via the
// default exchange. Delivery survives a broker restart; ordering across
// media types is not guaranteed.
func (m *Manager) EnqueueTask(ctx context.Context, media domain.MediaType, task domain.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	queue := media.QueueName()

	publish := func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pubCh == nil {
			return amqp.ErrClosed
		}
		return m.pubCh.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	}

	if m.executor != nil {
		err = m.executor.Execute(ctx, "amqp.publish", publish, classifyAMQPError)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(fmt.Errorf("publish to %s: %w", queue, err))
	}

	slog.Info("task enqueued", "queue", queue, "file", task.FileName)
	return nil
}

// QueueStatus passively inspects a queue and reports its message and
// consumer counts. It never creates or mutates the queue; a throwaway
// channel absorbs the channel-close a failed passive declare causes.
func (m *Manager) QueueStatus(queue string) (int, int, error) {
	ch, err := m.freshChannel()
	if err != nil {
		return 0, 0, err
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, amqp.Table{
		"x-message-ttl":             m.opts.MessageTTL.Milliseconds(),
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": DeadLetterQueue(queue),
		"x-max-priority":            int32(m.opts.MaxPriority),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("inspect queue %s: %w", queue, err)
	}
	return q.Messages, q.Consumers, nil
}

// PurgeQueue drains a primary queue and its DLQ to zero messages.
// Declaring before purging keeps the call idempotent on a fresh broker.
func (m *Manager) PurgeQueue(queue string) error {
	ch, err := m.freshChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := m.declareQueue(ch, queue); err != nil {
		return err
	}
	if _, err := ch.QueuePurge(queue, false); err != nil {
		return fmt.Errorf("purge queue %s: %w", queue, err)
	}
	if _, err := ch.QueuePurge(DeadLetterQueue(queue), false); err != nil {
		return fmt.Errorf("purge queue %s: %w", DeadLetterQueue(queue), err)
	}
	slog.Info("queue purged", "queue", queue)
	return nil
}

func (m *Manager) PurgeQueues() error {
	for _, queue := range QueueNames() {
		if err := m.PurgeQueue(queue); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) freshChannel() (*amqp.Channel, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return nil, amqp.ErrClosed
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Close releases the channel and connection. Messages delivered but not yet
// acked are redelivered by the broker after reconnection or expire to the
// DLQ via TTL.
func (m *Manager) Close() {
	m.closedMu.Lock()
	m.closed = true
	m.closedMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pubCh != nil {
		_ = m.pubCh.Close()
		m.pubCh = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) isClosed() bool {
	m.closedMu.Lock()
	defer m.closedMu.Unlock()
	return m.closed
}
