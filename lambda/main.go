// Command lambda runs the thumbnail generator as an AWS Lambda function
// subscribed to S3 ObjectCreated notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/app"
	"github.com/phambaophuc/blob-thumbnail/internal/config"
	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/idempotency"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

// creationEvents turns S3 notification records into creation events. Object
// keys arrive form-encoded. Event IDs are derived from the object and its
// sequencer so Lambda retries of the same record share an ID.
func creationEvents(event events.S3Event) ([]models.CreationEvent, error) {
	out := make([]models.CreationEvent, 0, len(event.Records))

	for _, record := range event.Records {
		if !strings.HasPrefix(record.EventName, "ObjectCreated:") {
			continue
		}

		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: bad object key %q: %v", models.ErrMalformedPayload, record.S3.Object.Key, err)
		}

		blobURL := (&url.URL{Scheme: "s3", Host: record.S3.Bucket.Name, Path: "/" + key}).String()
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(blobURL+"#"+record.S3.Object.Sequencer)).String()

		out = append(out, models.CreationEvent{ID: id, URL: blobURL})
	}

	return out, nil
}

// handleS3Event processes every record. Only retryable failures are returned
// as errors so the Lambda retry policy redelivers the event; fatal records are
// logged and dropped.
func handleS3Event(ctx context.Context, handle idempotency.Handler, logger *zap.Logger, event events.S3Event) error {
	creations, err := creationEvents(event)
	if err != nil {
		logger.Error("Dropping malformed S3 event", zap.Error(err))
		return nil
	}

	var errs []error
	for _, creation := range creations {
		result := handle(ctx, creation)
		if result.Outcome == thumbnail.OutcomeRetryable {
			errs = append(errs, fmt.Errorf("%s: %s", creation.URL, result.Reason))
		}
	}

	return errors.Join(errs...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	// No scrape endpoint in Lambda, so no metrics registry.
	thumbnails, err := app.New(context.Background(), cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize thumbnail generator", zap.Error(err))
	}
	defer thumbnails.Close()

	lambda.Start(func(ctx context.Context, event events.S3Event) error {
		return handleS3Event(ctx, thumbnails.Handler, logger, event)
	})
}
