package processor

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	ResamplerLanczos    = "lanczos"
	ResamplerCatmullRom = "catmullrom"
	ResamplerLinear     = "linear"
	ResamplerNearest    = "nearest"
)

func validResampler(name string) error {
	switch name {
	case ResamplerLanczos, ResamplerCatmullRom, ResamplerLinear, ResamplerNearest:
		return nil
	default:
		return fmt.Errorf("unknown resampler %q", name)
	}
}

func (p *ImageProcessor) resizeImage(img image.Image, plan DimensionPlan) image.Image {
	switch p.resampler {
	case ResamplerCatmullRom:
		dst := image.NewRGBA(image.Rect(0, 0, plan.Width, plan.Height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	case ResamplerLinear:
		return imaging.Resize(img, plan.Width, plan.Height, imaging.Linear)
	case ResamplerNearest:
		return imaging.Resize(img, plan.Width, plan.Height, imaging.NearestNeighbor)
	default:
		return imaging.Resize(img, plan.Width, plan.Height, imaging.Lanczos)
	}
}
