package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default extraction queue name
	DefaultQueueName = "task_extraction_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "task_extraction_jobs_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "taskquest_jobs"
	// DefaultDelayedExchangeName is the delayed exchange name (requires the
	// rabbitmq_delayed_message_exchange plugin)
	DefaultDelayedExchangeName = "taskquest_jobs_delayed"
)

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	logger              *zap.Logger
	queueName           string
	dlqName             string
	exchangeName        string
	delayedExchangeName string
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue connects to RabbitMQ and declares the exchanges and
// queues used by the extraction pipeline.
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		logger:              logger,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// setup declares the exchanges, the DLQ, and the main queue with
// dead-lettering to the DLQ.
func (q *RabbitMQQueue) setup() error {
	// Delayed exchange is optional: without the plugin the declare fails and
	// NotBefore jobs fall back to immediate delivery.
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		if q.channel.IsClosed() {
			newCh, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = newCh
		}
		q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	}

	err = q.channel.ExchangeDeclare(
		q.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err = q.channel.QueueDeclare(
		q.dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err = q.channel.QueueBind(q.dlqName, "dlq", q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": "dlq",
	}
	if _, err = q.channel.QueueDeclare(
		q.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		queueArgs,
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err = q.channel.QueueBind(q.queueName, "jobs", q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	// Best effort: only succeeds when the delayed exchange exists.
	_ = q.channel.QueueBind(q.queueName, "jobs", q.delayedExchangeName, false, nil)

	return nil
}

// Enqueue publishes a job. NotAfter becomes a message TTL; NotBefore routes
// through the delayed exchange when available.
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         jobJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
	}

	if job.NotAfter != nil {
		if ttl := time.Until(*job.NotAfter); ttl > 0 {
			publishing.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
		}
	}

	exchangeName := q.exchangeName
	if job.NotBefore != nil {
		if delay := time.Until(*job.NotBefore); delay > 0 {
			exchangeName = q.delayedExchangeName
			publishing.Headers = amqp.Table{"x-delay": int(delay.Milliseconds())}
		}
	}

	if err := q.channel.PublishWithContext(ctx, exchangeName, "jobs", false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume delivers messages asynchronously on a dedicated channel. Prefetch
// bounds unacknowledged messages per consumer, which keeps dispatch fair
// across worker replicas.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (auto-generated)
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					// Malformed payload goes to the DLQ.
					_ = delivery.Nack(false, false)
					errChan <- fmt.Errorf("failed to unmarshal job: %w", err)
					continue
				}

				if job.IsExpired() {
					_ = delivery.Nack(false, false)
					continue
				}
				if !job.ShouldProcess() {
					_ = delivery.Nack(false, true)
					continue
				}

				msg := &Message{
					Job:         &job,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     consumeCh,
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// PurgeOlderThan drains DLQ messages whose timestamp is past the retention
// window. Younger messages are requeued.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	purged := 0

	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		delivery, ok, err := q.channel.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			return purged, nil
		}

		if delivery.Timestamp.Before(cutoff) {
			if err := delivery.Ack(false); err != nil {
				return purged, fmt.Errorf("failed to ack purged message: %w", err)
			}
			purged++
			continue
		}

		// The head of the queue is inside retention; everything behind it is
		// younger still.
		_ = delivery.Nack(false, true)
		return purged, nil
	}
}

// HealthCheck verifies the connection and the main queue are reachable.
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	if _, err := q.channel.QueueDeclarePassive(q.queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": "dlq",
	}); err != nil {
		return fmt.Errorf("queue %s unavailable: %w", q.queueName, err)
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
