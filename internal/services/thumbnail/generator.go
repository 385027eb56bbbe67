// Package thumbnail turns a blob-created event into a downscaled copy of the
// blob written next to, or derived from, the original.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/metrics"
	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/naming"
	"github.com/phambaophuc/blob-thumbnail/internal/services/processor"
	"github.com/phambaophuc/blob-thumbnail/internal/services/storage"
)

type Options struct {
	Width       int
	Resampler   string
	JPEGQuality int
	MaxPixels   int
}

// Generator handles blob-created events. It holds no per-event state and is
// safe for concurrent use.
type Generator struct {
	width     int
	processor *processor.ImageProcessor
	deriver   naming.Deriver
	store     storage.BlobStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewGenerator(
	opts Options,
	deriver naming.Deriver,
	store storage.BlobStore,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Generator, error) {
	if opts.Width <= 0 {
		return nil, fmt.Errorf("thumbnail width must be positive, got %d", opts.Width)
	}
	if deriver == nil || store == nil {
		return nil, errors.New("thumbnail generator needs a naming deriver and a blob store")
	}

	p, err := processor.NewImageProcessor(opts.Resampler, opts.JPEGQuality, opts.MaxPixels)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		width:     opts.Width,
		processor: p,
		deriver:   deriver,
		store:     store,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Run handles a raw Event Grid event. An empty or JSON null payload is a no-op.
func (g *Generator) Run(ctx context.Context, payload []byte) Result {
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		g.logger.Debug("Empty event payload, nothing to do")
		result := Result{Outcome: OutcomeSkipped, Reason: "empty payload"}
		g.metrics.Observe(string(result.Outcome), 0, 0)
		return result
	}

	event, err := models.ParseStorageEvent(payload)
	if err != nil {
		result := g.failed(g.logger, Result{}, err)
		g.metrics.Observe(string(result.Outcome), 0, 0)
		return result
	}

	return g.Process(ctx, event)
}

// Process makes one thumbnail for one created blob. It never retries; the
// Outcome of the result tells the caller whether redelivery makes sense.
func (g *Generator) Process(ctx context.Context, event models.CreationEvent) (result Result) {
	start := time.Now()
	result.EventID = event.ID

	logger := g.logger.With(
		zap.String("event_id", event.ID),
		zap.String("url", event.URL),
	)

	defer func() {
		g.metrics.Observe(string(result.Outcome), time.Since(start), result.Bytes)
	}()

	source, err := storage.ParseBlobURL(event.URL)
	if err != nil {
		return g.failed(logger, result, err)
	}
	result.Source = source

	encoder := processor.SelectEncoder(source.Ext())
	if !encoder.Supported() {
		logger.Info(fmt.Sprintf("No encoder support for: %s", event.URL))
		result.Outcome = OutcomeSkipped
		result.Reason = "unsupported extension"
		return result
	}

	if d, ok := g.deriver.(naming.DerivedDetector); ok && d.IsDerived(source.Key) {
		logger.Info("Source is a generated thumbnail, nothing to do")
		result.Outcome = OutcomeSkipped
		result.Reason = "source is a thumbnail"
		return result
	}

	dest, err := g.deriver.Derive(source.Container, source.Key)
	if err != nil {
		return g.failed(logger, result, err)
	}
	result.Destination = storage.BlobRef{Container: dest.Container, Key: dest.Key}

	logger.Info("Resolved thumbnail destination",
		zap.String("source", source.String()),
		zap.String("container", dest.Container),
		zap.String("key", dest.Key),
		zap.Int("width", g.width),
	)

	data, found, err := g.readSource(ctx, source)
	if err != nil {
		return g.failed(logger, result, err)
	}
	if !found {
		logger.Info("Source blob is gone, nothing to do")
		result.Outcome = OutcomeSkipped
		result.Reason = "source not found"
		return result
	}

	if err := g.store.EnsureContainer(ctx, dest.Container); err != nil {
		return g.failed(logger, result, err)
	}

	out, err := g.processor.ProcessImage(bytes.NewReader(data), encoder, g.width)
	if err != nil {
		return g.failed(logger, result, err)
	}

	logger.Info("Resized image",
		zap.Int("image_width", out.SourceWidth),
		zap.Int("image_height", out.SourceHeight),
		zap.Int("divisor", out.Plan.Divisor),
		zap.Int("width", out.Plan.Width),
		zap.Int("height", out.Plan.Height),
	)

	if err := g.store.Upload(ctx, result.Destination, out.Buffer.Bytes(), encoder.ContentType()); err != nil {
		return g.failed(logger, result, err)
	}

	result.Outcome = OutcomeSuccess
	result.Width = out.Plan.Width
	result.Height = out.Plan.Height
	result.Bytes = out.Buffer.Len()

	logger.Info("Thumbnail uploaded",
		zap.String("destination", result.Destination.String()),
		zap.Int("size", result.Bytes),
		zap.Duration("duration", time.Since(start)),
	)

	return result
}

// readSource reads the whole source blob. found is false when the blob does
// not exist (anymore); that is not an error.
func (g *Generator) readSource(ctx context.Context, ref storage.BlobRef) (data []byte, found bool, err error) {
	rc, err := g.store.Open(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rc == nil {
		return nil, false, nil
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, true, nil
}

func (g *Generator) failed(logger *zap.Logger, result Result, err error) Result {
	result.Outcome = classify(err)
	result.Reason = err.Error()
	result.Err = err

	logger.Error("Thumbnail generation failed",
		zap.String("outcome", string(result.Outcome)),
		zap.Error(err),
	)
	return result
}
