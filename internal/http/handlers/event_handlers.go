package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/metrics"
	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/idempotency"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

const (
	maxEventBodySize = 1 << 20

	outcomeQueued  = "queued"
	outcomeIgnored = "ignored"
)

// EventPublisher hands events over to the queue workers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.StorageEvent) error
}

// HealthChecker reports the status of one or more dependencies.
type HealthChecker func(ctx context.Context) map[string]string

type EventHandler struct {
	handle    idempotency.Handler
	publisher EventPublisher
	checkers  []HealthChecker
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewEventHandler processes blob-created events inline with handle, or
// publishes them when publisher is non-nil. m counts events rejected before
// they reach handle and may be nil.
func NewEventHandler(
	handle idempotency.Handler,
	publisher EventPublisher,
	logger *zap.Logger,
	m *metrics.Metrics,
	checkers ...HealthChecker,
) *EventHandler {
	return &EventHandler{
		handle:    handle,
		publisher: publisher,
		checkers:  checkers,
		logger:    logger,
		metrics:   m,
	}
}

// HandleEvents accepts an Event Grid delivery: a JSON array of events, or a
// single event object.
func (h *EventHandler) HandleEvents(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, http.StatusRequestEntityTooLarge, "Event body too large")
			return
		}
		h.logger.Warn("Failed to read event body", zap.Error(err))
		h.respondError(c, http.StatusBadRequest, "Failed to read event body")
		return
	}

	if len(body) == 0 {
		c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: []models.EventResult{}})
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		h.logger.Warn("Rejected malformed event delivery", zap.Error(err))
		h.metrics.Observe(string(thumbnail.OutcomeFatal), 0, 0)
		h.respondError(c, http.StatusBadRequest, "Invalid event payload")
		return
	}

	// Subscription handshake comes alone and must be answered synchronously.
	for _, event := range events {
		if event.EventType == models.EventTypeSubscriptionValidation {
			h.handleValidation(c, event)
			return
		}
	}

	ctx := c.Request.Context()
	results := make([]models.EventResult, 0, len(events))
	for _, event := range events {
		results = append(results, h.handleEvent(ctx, event))
	}

	status := statusFor(results)
	c.JSON(status, models.APIResponse{
		Success: status < http.StatusBadRequest,
		Data:    results,
	})
}

func (h *EventHandler) handleValidation(c *gin.Context, event models.StorageEvent) {
	var data models.SubscriptionValidationData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.ValidationCode == "" {
		h.respondError(c, http.StatusBadRequest, "Invalid subscription validation event")
		return
	}

	h.logger.Info("Event Grid subscription validated", zap.String("event_id", event.ID))
	c.JSON(http.StatusOK, models.SubscriptionValidationResponse{ValidationResponse: data.ValidationCode})
}

func (h *EventHandler) handleEvent(ctx context.Context, event models.StorageEvent) models.EventResult {
	if event.EventType != models.EventTypeBlobCreated {
		h.logger.Debug("Ignoring event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
		)
		return models.EventResult{ID: event.ID, Outcome: outcomeIgnored, Reason: "unsupported event type"}
	}

	if h.publisher != nil {
		if err := h.publisher.PublishEvent(ctx, event); err != nil {
			h.logger.Error("Failed to enqueue event", zap.String("event_id", event.ID), zap.Error(err))
			return models.EventResult{ID: event.ID, Outcome: string(thumbnail.OutcomeRetryable), Reason: err.Error()}
		}
		return models.EventResult{ID: event.ID, Outcome: outcomeQueued}
	}

	creation, err := event.CreationEvent()
	if err != nil {
		h.metrics.Observe(string(thumbnail.OutcomeFatal), 0, 0)
		return models.EventResult{ID: event.ID, Outcome: string(thumbnail.OutcomeFatal), Reason: err.Error()}
	}

	return h.handle(ctx, creation).ToModel()
}

// HealthCheck
func (h *EventHandler) HealthCheck(c *gin.Context) {
	services := make(map[string]string)
	for _, check := range h.checkers {
		for name, status := range check(c.Request.Context()) {
			services[name] = status
		}
	}
	overall := calculateOverallHealth(services)

	statusCode := http.StatusOK
	if overall == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.APIResponse{
		Success: overall == "healthy",
		Data: models.HealthCheck{
			Status:    overall,
			Timestamp: time.Now(),
			Services:  services,
		},
	})
}

func (h *EventHandler) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBodySize)
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(body), nil
}

func decodeEvents(body []byte) ([]models.StorageEvent, error) {
	if body[0] == '{' {
		var event models.StorageEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		return []models.StorageEvent{event}, nil
	}

	var events []models.StorageEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// statusFor picks the response code for a delivery. Any retryable event makes
// Event Grid redeliver the batch; otherwise a fatal one is reported as 422.
func statusFor(results []models.EventResult) int {
	status := http.StatusOK
	queued := len(results) > 0

	for _, r := range results {
		switch r.Outcome {
		case string(thumbnail.OutcomeRetryable):
			return http.StatusServiceUnavailable
		case string(thumbnail.OutcomeFatal):
			status = http.StatusUnprocessableEntity
		}
		if r.Outcome != outcomeQueued {
			queued = false
		}
	}

	if status == http.StatusOK && queued {
		return http.StatusAccepted
	}
	return status
}

func calculateOverallHealth(services map[string]string) string {
	for _, status := range services {
		if status != "healthy" && status != "not configured" {
			return "unhealthy"
		}
	}
	return "healthy"
}
