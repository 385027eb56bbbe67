package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/metrics"
	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/naming"
	"github.com/phambaophuc/blob-thumbnail/internal/services/storage"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPublisher struct {
	published []models.StorageEvent
	err       error
}

func (p *stubPublisher) PublishEvent(_ context.Context, event models.StorageEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func fixedOutcome(outcome thumbnail.Outcome) func(context.Context, models.CreationEvent) thumbnail.Result {
	return func(_ context.Context, event models.CreationEvent) thumbnail.Result {
		return thumbnail.Result{EventID: event.ID, Outcome: outcome}
	}
}

func serve(h *EventHandler, method, path string, body []byte) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/events", h.HandleEvents)
	r.GET("/health", h.HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return w
}

func blobCreated(t *testing.T, id, url string) models.StorageEvent {
	t.Helper()
	event, err := models.NewBlobCreatedEvent(id, url)
	require.NoError(t, err)
	return event
}

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

type envelope struct {
	Success bool                 `json:"success"`
	Data    []models.EventResult `json:"data"`
	Error   string               `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandleEvents_SubscriptionValidation(t *testing.T) {
	h := NewEventHandler(fixedOutcome(thumbnail.OutcomeSuccess), nil, zap.NewNop(), nil)
	body := `[{
		"id": "2d1781af-3a4c-4d7c-bd0c-e34b19da4e66",
		"eventType": "Microsoft.EventGrid.SubscriptionValidationEvent",
		"subject": "",
		"eventTime": "2018-01-25T22:12:19.4556811Z",
		"data": {"validationCode": "512d38b6-c7b8-40c8-89fe-f46f9e9622b6"},
		"dataVersion": "1"
	}]`

	w := serve(h, http.MethodPost, "/events", []byte(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"validationResponse":"512d38b6-c7b8-40c8-89fe-f46f9e9622b6"}`, w.Body.String())
}

func TestHandleEvents_OutcomeToStatus(t *testing.T) {
	tests := []struct {
		outcome thumbnail.Outcome
		status  int
	}{
		{thumbnail.OutcomeSuccess, http.StatusOK},
		{thumbnail.OutcomeSkipped, http.StatusOK},
		{thumbnail.OutcomeFatal, http.StatusUnprocessableEntity},
		{thumbnail.OutcomeRetryable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			h := NewEventHandler(fixedOutcome(tt.outcome), nil, zap.NewNop(), nil)
			body := marshal(t, []models.StorageEvent{blobCreated(t, "evt-1", "s3://uploads/AB_photo.jpg")})

			w := serve(h, http.MethodPost, "/events", body)

			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			require.Len(t, env.Data, 1)
			assert.Equal(t, "evt-1", env.Data[0].ID)
			assert.Equal(t, string(tt.outcome), env.Data[0].Outcome)
		})
	}
}

func TestHandleEvents_SingleObjectAndIgnoredTypes(t *testing.T) {
	h := NewEventHandler(fixedOutcome(thumbnail.OutcomeSuccess), nil, zap.NewNop(), nil)

	w := serve(h, http.MethodPost, "/events", marshal(t, blobCreated(t, "evt-1", "s3://uploads/AB_photo.jpg")))
	assert.Equal(t, http.StatusOK, w.Code)

	deleted := blobCreated(t, "evt-2", "s3://uploads/AB_photo.jpg")
	deleted.EventType = "Microsoft.Storage.BlobDeleted"
	w = serve(h, http.MethodPost, "/events", marshal(t, []models.StorageEvent{deleted}))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.Len(t, env.Data, 1)
	assert.Equal(t, outcomeIgnored, env.Data[0].Outcome)
}

func TestHandleEvents_EmptyAndMalformed(t *testing.T) {
	h := NewEventHandler(fixedOutcome(thumbnail.OutcomeSuccess), nil, zap.NewNop(), nil)

	w := serve(h, http.MethodPost, "/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(h, http.MethodPost, "/events", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode(t, w).Success)

	noURL := blobCreated(t, "evt-3", "s3://uploads/AB_photo.jpg")
	noURL.Data = json.RawMessage(`{"api":"PutBlob"}`)
	w = serve(h, http.MethodPost, "/events", marshal(t, []models.StorageEvent{noURL}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleEvents_Enqueue(t *testing.T) {
	pub := &stubPublisher{}
	h := NewEventHandler(fixedOutcome(thumbnail.OutcomeFatal), pub, zap.NewNop(), nil)
	body := marshal(t, []models.StorageEvent{
		blobCreated(t, "evt-1", "s3://uploads/AB_a.jpg"),
		blobCreated(t, "evt-2", "s3://uploads/AB_b.jpg"),
	})

	w := serve(h, http.MethodPost, "/events", body)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.published, 2)
	assert.Equal(t, "evt-2", pub.published[1].ID)

	pub.err = errors.New("channel closed")
	w = serve(h, http.MethodPost, "/events", body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleEvents_InlineEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	img := imaging.New(1920, 1080, color.NRGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	store.Put(storage.BlobRef{Container: "uploads", Key: "AB_photo.jpg"}, buf.Bytes(), "image/jpeg")

	gen, err := thumbnail.NewGenerator(thumbnail.Options{Width: 480}, naming.SplitDeriver{}, store, zap.NewNop(), nil)
	require.NoError(t, err)

	h := NewEventHandler(gen.Process, nil, zap.NewNop(), nil)
	body := marshal(t, []models.StorageEvent{
		blobCreated(t, "evt-1", "https://acct.blob.core.windows.net/uploads/AB_photo.jpg"),
	})

	w := serve(h, http.MethodPost, "/events", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "AB/photo.jpg", env.Data[0].Destination)
	assert.Equal(t, 480, env.Data[0].Width)
	assert.Equal(t, 270, env.Data[0].Height)

	_, ok := store.Get(storage.BlobRef{Container: "AB", Key: "photo.jpg"})
	assert.True(t, ok)
}

func TestHealthCheck(t *testing.T) {
	healthy := func(context.Context) map[string]string { return map[string]string{"memory": "healthy"} }
	noQueue := func(context.Context) map[string]string { return map[string]string{"rabbitmq": "not configured"} }
	down := func(context.Context) map[string]string { return map[string]string{"redis": "unhealthy: refused"} }

	w := serve(NewEventHandler(nil, nil, zap.NewNop(), nil, healthy, noQueue), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"status":"healthy"`))

	w = serve(NewEventHandler(nil, nil, zap.NewNop(), nil, healthy, down), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"unhealthy: refused"`)
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestHandleEvents_BodyReadErrors(t *testing.T) {
	h := NewEventHandler(fixedOutcome(thumbnail.OutcomeSuccess), nil, zap.NewNop(), nil)
	r := gin.New()
	r.POST("/events", h.HandleEvents)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(bytes.Repeat([]byte(" "), maxEventBodySize+1))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", failingBody{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Failed to read event body", decode(t, w).Error)
}

func TestHandleEvents_RejectedEventsAreCounted(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewEventHandler(fixedOutcome(thumbnail.OutcomeSuccess), nil, zap.NewNop(), m)

	serve(h, http.MethodPost, "/events", []byte("[{broken"))

	noURL := blobCreated(t, "evt-3", "s3://uploads/AB_photo.jpg")
	noURL.Data = json.RawMessage(`{"api":"PutBlob"}`)
	serve(h, http.MethodPost, "/events", marshal(t, []models.StorageEvent{noURL}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(thumbnail.OutcomeFatal))))
}
