package thumbnail

import (
	"errors"

	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/naming"
	"github.com/phambaophuc/blob-thumbnail/internal/services/processor"
	"github.com/phambaophuc/blob-thumbnail/internal/services/storage"
)

// Outcome tells the triggering side what to do with an event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomeSkipped is a normal, successful no-op.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRetryable means redelivering the same event may succeed.
	OutcomeRetryable Outcome = "retryable"
	// OutcomeFatal means redelivery cannot help; the event should be dead-lettered.
	OutcomeFatal Outcome = "fatal"
)

// Result describes one pass over one event.
type Result struct {
	EventID     string
	Outcome     Outcome
	Reason      string
	Source      storage.BlobRef
	Destination storage.BlobRef
	Width       int
	Height      int
	Bytes       int
	Err         error
}

// Completed reports whether the event needs no further delivery.
func (r Result) Completed() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeSkipped
}

func (r Result) ToModel() models.EventResult {
	res := models.EventResult{
		ID:      r.EventID,
		Outcome: string(r.Outcome),
		Reason:  r.Reason,
		Width:   r.Width,
		Height:  r.Height,
	}
	if r.Destination.Container != "" {
		res.Destination = r.Destination.String()
	}
	return res
}

// classify decides whether err can go away on redelivery.
func classify(err error) Outcome {
	var nameErr *naming.InvalidNameError

	switch {
	case errors.Is(err, models.ErrMalformedPayload),
		errors.Is(err, storage.ErrInvalidURL),
		errors.As(err, &nameErr),
		errors.Is(err, processor.ErrDecode),
		errors.Is(err, processor.ErrImageTooLarge),
		errors.Is(err, storage.ErrInvalidContainer),
		errors.Is(err, processor.ErrInvalidDimensions),
		errors.Is(err, processor.ErrUpscaleNotSupported):
		return OutcomeFatal
	default:
		return OutcomeRetryable
	}
}
