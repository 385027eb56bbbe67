package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
	actionReject
)

// actionFor maps a handling outcome to what happens to the delivery. Rejected
// deliveries go to the dead-letter queue.
func actionFor(outcome thumbnail.Outcome) deliveryAction {
	switch outcome {
	case thumbnail.OutcomeSuccess, thumbnail.OutcomeSkipped:
		return actionAck
	case thumbnail.OutcomeRetryable:
		return actionRequeue
	default:
		return actionReject
	}
}

func (q *QueueService) StartWorker(ctx context.Context, workerID int) error {
	msgs, err := q.channel.Consume(
		q.queueName,                        // queue
		fmt.Sprintf("worker-%d", workerID), // consumer
		false,                              // auto-ack
		false,                              // exclusive
		false,                              // no-local
		false,                              // no-wait
		nil,                                // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.Info("Worker started", zap.Int("worker_id", workerID))

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.logger.Info("Worker stopping", zap.Int("worker_id", workerID))
				return
			case msg, ok := <-msgs:
				if !ok {
					q.logger.Warn("Message channel closed", zap.Int("worker_id", workerID))
					return
				}

				q.processMessage(ctx, msg, workerID)
			}
		}
	}()

	return nil
}

func (q *QueueService) processMessage(ctx context.Context, msg amqp.Delivery, workerID int) {
	event, err := models.ParseStorageEvent(msg.Body)
	if err != nil {
		q.logger.Error("Failed to parse event",
			zap.Error(err),
			zap.Int("worker_id", workerID))
		q.metrics.Observe(string(thumbnail.OutcomeFatal), 0, 0)
		q.settle(msg, actionReject, workerID)
		return
	}

	result := q.handler(ctx, event)

	q.logger.Info("Event handled",
		zap.String("event_id", event.ID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("worker_id", workerID))

	action := actionFor(result.Outcome)
	if action == actionRequeue && ctx.Err() == nil {
		// Shutdown interruptions go straight back without using up a retry.
		action = q.scheduleRetry(msg, event.ID, workerID)
	}

	q.settle(msg, action, workerID)
}

// scheduleRetry parks a copy of msg in the retry queue and returns how the
// original delivery should be settled.
func (q *QueueService) scheduleRetry(msg amqp.Delivery, eventID string, workerID int) deliveryAction {
	attempt := retryCount(msg.Headers)
	if attempt >= q.maxRetries {
		q.logger.Warn("Retry limit reached, dead-lettering event",
			zap.String("event_id", eventID),
			zap.Int("retries", attempt),
			zap.Int("worker_id", workerID))
		return actionReject
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempt + 1)

	err := q.publisher.Publish(
		"",                     // exchange
		retryName(q.queueName), // routing key
		false,                  // mandatory
		false,                  // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			MessageId:    msg.MessageId,
			Headers:      headers,
			Body:         msg.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		q.logger.Error("Failed to schedule retry, requeueing",
			zap.String("event_id", eventID),
			zap.Int("worker_id", workerID),
			zap.Error(err))
		return actionRequeue
	}

	q.logger.Info("Event scheduled for retry",
		zap.String("event_id", eventID),
		zap.Int("attempt", attempt+1),
		zap.Int("worker_id", workerID))
	return actionAck
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	default:
		return 0
	}
}

func (q *QueueService) settle(msg amqp.Delivery, action deliveryAction, workerID int) {
	var err error
	switch action {
	case actionAck:
		err = msg.Ack(false)
	case actionRequeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Nack(false, false)
	}

	if err != nil {
		q.logger.Error("Failed to settle message",
			zap.String("message_id", msg.MessageId),
			zap.Int("worker_id", workerID),
			zap.Error(err))
	}
}
