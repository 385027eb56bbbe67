package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EventTypeBlobCreated            = "Microsoft.Storage.BlobCreated"
	EventTypeSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"
)

// ErrMalformedPayload marks an event body that can never be processed,
// no matter how often it is redelivered.
var ErrMalformedPayload = errors.New("malformed event payload")

// StorageEvent is a single event in the Event Grid schema.
type StorageEvent struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic,omitempty"`
	Subject     string          `json:"subject"`
	EventType   string          `json:"eventType"`
	EventTime   time.Time       `json:"eventTime"`
	Data        json.RawMessage `json:"data"`
	DataVersion string          `json:"dataVersion"`
}

// BlobCreatedData is the data section of a Microsoft.Storage.BlobCreated event.
type BlobCreatedData struct {
	API           string `json:"api,omitempty"`
	ContentType   string `json:"contentType,omitempty"`
	ContentLength int64  `json:"contentLength,omitempty"`
	BlobType      string `json:"blobType,omitempty"`
	URL           string `json:"url"`
}

type SubscriptionValidationData struct {
	ValidationCode string `json:"validationCode"`
	ValidationURL  string `json:"validationUrl,omitempty"`
}

type SubscriptionValidationResponse struct {
	ValidationResponse string `json:"validationResponse"`
}

// CreationEvent is the only part of a notification the thumbnail generator
// needs: which object was created.
type CreationEvent struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

// ParseStorageEvent decodes a single Event Grid event and extracts the
// created blob URL.
func ParseStorageEvent(payload []byte) (CreationEvent, error) {
	var event StorageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return CreationEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return event.CreationEvent()
}

// CreationEvent extracts the blob URL from the event data.
func (e StorageEvent) CreationEvent() (CreationEvent, error) {
	if len(e.Data) == 0 {
		return CreationEvent{}, fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}

	var data BlobCreatedData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return CreationEvent{}, fmt.Errorf("%w: invalid data: %v", ErrMalformedPayload, err)
	}

	url := strings.TrimSpace(data.URL)
	if url == "" {
		return CreationEvent{}, fmt.Errorf("%w: missing data.url", ErrMalformedPayload)
	}

	return CreationEvent{ID: e.ID, URL: url}, nil
}

// NewBlobCreatedEvent builds an Event Grid event for a created blob. It is
// used when re-publishing events to the queue.
func NewBlobCreatedEvent(id, url string) (StorageEvent, error) {
	data, err := json.Marshal(BlobCreatedData{API: "PutBlob", URL: url})
	if err != nil {
		return StorageEvent{}, err
	}

	return StorageEvent{
		ID:          id,
		EventType:   EventTypeBlobCreated,
		EventTime:   time.Now().UTC(),
		Data:        data,
		DataVersion: "1.0",
	}, nil
}
