package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

func TestMemoryStore_AddAndContains(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, store.Add(ctx, "evt-1"))

	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-expire"))
	time.Sleep(20 * time.Millisecond)

	got, err := store.Contains(ctx, "evt-expire")
	require.NoError(t, err)
	assert.False(t, got)
}

type countingHandler struct {
	calls   int
	outcome thumbnail.Outcome
}

func (h *countingHandler) handle(_ context.Context, event models.CreationEvent) thumbnail.Result {
	h.calls++
	return thumbnail.Result{EventID: event.ID, Outcome: h.outcome}
}

func TestGuard_SkipsDuplicates(t *testing.T) {
	inner := &countingHandler{outcome: thumbnail.OutcomeSuccess}
	handler := Guard(NewMemoryStore(time.Hour), inner.handle, zaptest.NewLogger(t))
	event := models.CreationEvent{ID: "evt-1", URL: "s3://b/AB_x.png"}

	first := handler(context.Background(), event)
	second := handler(context.Background(), event)

	assert.Equal(t, thumbnail.OutcomeSuccess, first.Outcome)
	assert.Equal(t, thumbnail.OutcomeSkipped, second.Outcome)
	assert.Equal(t, "duplicate event", second.Reason)
	assert.Equal(t, 1, inner.calls)
}

func TestGuard_FailedEventsStayEligible(t *testing.T) {
	for _, outcome := range []thumbnail.Outcome{thumbnail.OutcomeRetryable, thumbnail.OutcomeFatal} {
		t.Run(string(outcome), func(t *testing.T) {
			inner := &countingHandler{outcome: outcome}
			handler := Guard(NewMemoryStore(time.Hour), inner.handle, zaptest.NewLogger(t))
			event := models.CreationEvent{ID: "evt-1"}

			handler(context.Background(), event)
			handler(context.Background(), event)

			assert.Equal(t, 2, inner.calls)
		})
	}
}

func TestGuard_EventsWithoutIDPassThrough(t *testing.T) {
	inner := &countingHandler{outcome: thumbnail.OutcomeSuccess}
	handler := Guard(NewMemoryStore(time.Hour), inner.handle, zaptest.NewLogger(t))

	handler(context.Background(), models.CreationEvent{URL: "s3://b/AB_x.png"})
	handler(context.Background(), models.CreationEvent{URL: "s3://b/AB_x.png"})

	assert.Equal(t, 2, inner.calls)
}

type brokenStore struct{}

func (brokenStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (brokenStore) Add(context.Context, string) error {
	return errors.New("redis: connection refused")
}

func TestGuard_StoreFailureProcessesAnyway(t *testing.T) {
	inner := &countingHandler{outcome: thumbnail.OutcomeSuccess}
	handler := Guard(brokenStore{}, inner.handle, zaptest.NewLogger(t))

	result := handler(context.Background(), models.CreationEvent{ID: "evt-1"})

	assert.Equal(t, thumbnail.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, inner.calls)
}

func TestGuard_NilStore(t *testing.T) {
	inner := &countingHandler{outcome: thumbnail.OutcomeSuccess}
	handler := Guard(nil, inner.handle, zaptest.NewLogger(t))

	handler(context.Background(), models.CreationEvent{ID: "evt-1"})
	handler(context.Background(), models.CreationEvent{ID: "evt-1"})

	assert.Equal(t, 2, inner.calls)
}
