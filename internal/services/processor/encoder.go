package processor

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

// Encoder is one of the closed set of output formats a thumbnail can be
// written in. EncoderNone means the extension is not supported.
type Encoder int

const (
	EncoderNone Encoder = iota
	EncoderJPEG
	EncoderPNG
	EncoderGIF
)

// SelectEncoder maps a file extension such as ".JPG" or "png" to an encoder.
// Unsupported extensions return EncoderNone; callers skip those blobs.
func SelectEncoder(extension string) Encoder {
	ext := strings.ToLower(strings.TrimLeft(strings.TrimSpace(extension), "."))

	switch ext {
	case "jpg", "jpeg":
		return EncoderJPEG
	case "png":
		return EncoderPNG
	case "gif":
		return EncoderGIF
	default:
		return EncoderNone
	}
}

func (e Encoder) Supported() bool {
	return e != EncoderNone
}

func (e Encoder) String() string {
	switch e {
	case EncoderJPEG:
		return "jpeg"
	case EncoderPNG:
		return "png"
	case EncoderGIF:
		return "gif"
	default:
		return "none"
	}
}

func (e Encoder) ContentType() string {
	switch e {
	case EncoderJPEG:
		return "image/jpeg"
	case EncoderPNG:
		return "image/png"
	case EncoderGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func (e Encoder) format() (imaging.Format, error) {
	switch e {
	case EncoderJPEG:
		return imaging.JPEG, nil
	case EncoderPNG:
		return imaging.PNG, nil
	case EncoderGIF:
		return imaging.GIF, nil
	default:
		return 0, fmt.Errorf("no encoder for %s", e)
	}
}

// Encode writes img in the encoder's format. quality applies to JPEG only.
func (e Encoder) Encode(w io.Writer, img image.Image, quality int) error {
	format, err := e.format()
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(quality))
}
