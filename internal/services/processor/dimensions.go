package processor

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDimensions = errors.New("image dimensions must be positive")
	// ErrUpscaleNotSupported is returned when the configured width is larger
	// than the source image. The divisor would be zero.
	ErrUpscaleNotSupported = errors.New("target width exceeds source width")
)

// DimensionPlan is the output size of a thumbnail.
type DimensionPlan struct {
	Divisor int
	Width   int
	Height  int
}

// PlanDimensions scales the height by the same integer ratio the width is
// reduced by. The divisor truncates; the height is rounded half away from zero.
func PlanDimensions(sourceWidth, sourceHeight, targetWidth int) (DimensionPlan, error) {
	if sourceWidth <= 0 || sourceHeight <= 0 || targetWidth <= 0 {
		return DimensionPlan{}, fmt.Errorf("%w: source %dx%d, target width %d",
			ErrInvalidDimensions, sourceWidth, sourceHeight, targetWidth)
	}

	divisor := sourceWidth / targetWidth
	if divisor == 0 {
		return DimensionPlan{}, fmt.Errorf("%w: source width %d, target width %d",
			ErrUpscaleNotSupported, sourceWidth, targetWidth)
	}

	height := int(math.Round(float64(sourceHeight) / float64(divisor)))
	if height < 1 {
		height = 1
	}

	return DimensionPlan{
		Divisor: divisor,
		Width:   targetWidth,
		Height:  height,
	}, nil
}
