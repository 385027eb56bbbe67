package queue

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/metrics"
	"github.com/phambaophuc/blob-thumbnail/internal/services/idempotency"
)

const (
	DefaultQueueName = "thumbnail_events"

	retryCountHeader = "x-thumbnail-retries"
)

type Options struct {
	URL      string
	Queue    string
	Prefetch int
	// MaxRetries is how often a retryable event is redelivered before it goes
	// to the dead-letter queue.
	MaxRetries int
	RetryDelay time.Duration
}

// publisher is the part of *amqp.Channel used to send messages.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueService consumes events from <queue>. Retryable failures wait in
// <queue>.retry for RetryDelay and then return to <queue>. Fatal failures and
// events over MaxRetries are dead-lettered through <queue>.dlx to <queue>.dlq.
type QueueService struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	publisher  publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	queueName  string
	maxRetries int
	handler    idempotency.Handler
}

func NewQueueService(
	opts Options,
	handler idempotency.Handler,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*QueueService, error) {
	if opts.Queue == "" {
		opts.Queue = DefaultQueueName
	}

	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel, opts); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	if opts.Prefetch > 0 {
		if err := channel.Qos(opts.Prefetch, 0, false); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	return &QueueService{
		conn:       conn,
		channel:    channel,
		publisher:  channel,
		logger:     logger,
		metrics:    m,
		queueName:  opts.Queue,
		maxRetries: opts.MaxRetries,
		handler:    handler,
	}, nil
}

func dlxName(queue string) string   { return queue + ".dlx" }
func dlqName(queue string) string   { return queue + ".dlq" }
func retryName(queue string) string { return queue + ".retry" }

func declareTopology(ch *amqp.Channel, opts Options) error {
	queue := opts.Queue

	err := ch.ExchangeDeclare(
		dlxName(queue), // name
		"direct",       // kind
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(dlqName(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(dlqName(queue), queue, dlxName(queue), false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}

	// Expired retries go back to the main queue through the default exchange.
	_, err = ch.QueueDeclare(retryName(queue), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
		"x-message-ttl":             opts.RetryDelay.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    dlxName(queue),
			"x-dead-letter-routing-key": queue,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	return nil
}

// Close closes the queue connection
func (q *QueueService) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
	return nil
}
