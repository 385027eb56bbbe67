package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	DefaultQuality = 85
	// DefaultMaxPixels bounds the decoded size of a source, about 200 MB as NRGBA.
	DefaultMaxPixels = 50_000_000
)

var (
	// ErrDecode wraps any failure to interpret the source bytes as an image.
	ErrDecode = errors.New("failed to decode image")
	// ErrImageTooLarge is returned before decoding when the header announces
	// more pixels than the processor accepts.
	ErrImageTooLarge = errors.New("image exceeds pixel limit")
)

type ImageProcessor struct {
	resampler string
	quality   int
	maxPixels int64
}

// Output is an encoded thumbnail together with the sizes that produced it.
type Output struct {
	Buffer       *bytes.Buffer
	SourceWidth  int
	SourceHeight int
	Plan         DimensionPlan
}

// NewImageProcessor falls back to defaults for an empty resampler and for
// non-positive quality or maxPixels.
func NewImageProcessor(resampler string, quality, maxPixels int) (*ImageProcessor, error) {
	if resampler == "" {
		resampler = ResamplerLanczos
	}
	if err := validResampler(resampler); err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	return &ImageProcessor{
		resampler: resampler,
		quality:   quality,
		maxPixels: int64(maxPixels),
	}, nil
}

// ProcessImage decodes r, downscales it to targetWidth and encodes the result
// with encoder.
func (p *ImageProcessor) ProcessImage(r io.Reader, encoder Encoder, targetWidth int) (*Output, error) {
	if !encoder.Supported() {
		return nil, fmt.Errorf("no encoder for %s", encoder)
	}

	// The header is read once for the size check and replayed for the decode.
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d is over %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, p.maxPixels)
	}

	img, err := imaging.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	plan, err := PlanDimensions(bounds.Dx(), bounds.Dy(), targetWidth)
	if err != nil {
		return nil, err
	}

	resized := p.resizeImage(img, plan)

	buffer := &bytes.Buffer{}
	if err := encoder.Encode(buffer, resized, p.quality); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &Output{
		Buffer:       buffer,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		Plan:         plan,
	}, nil
}
