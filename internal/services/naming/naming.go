// Package naming derives where a thumbnail is written from the name of the
// blob it was made from.
package naming

import (
	"fmt"
	"strings"
)

const (
	ConventionSplit  = "split"
	ConventionPrefix = "prefix"

	// ThumbPrefix is prepended to the source key by the prefix convention.
	ThumbPrefix = "thumb_"

	separator = "_"
)

// Destination is where a thumbnail is uploaded.
type Destination struct {
	Container string
	Key       string
}

// InvalidNameError reports a source key that does not follow the
// <code>_<filename> convention.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("blob name %q does not match <code>_<filename>", e.Name)
}

// Deriver maps a source blob to its thumbnail destination.
type Deriver interface {
	Derive(sourceContainer, sourceKey string) (Destination, error)
}

// NewDeriver returns the deriver for a naming convention.
func NewDeriver(convention string) (Deriver, error) {
	switch strings.ToLower(convention) {
	case "", ConventionSplit:
		return SplitDeriver{}, nil
	case ConventionPrefix:
		return PrefixDeriver{}, nil
	default:
		return nil, fmt.Errorf("unknown naming convention %q", convention)
	}
}

// SplitDeriver sends "AB_photo.png" to container "AB", key "photo.png".
// Only the first separator is significant.
type SplitDeriver struct{}

func (SplitDeriver) Derive(_, sourceKey string) (Destination, error) {
	code, filename, found := strings.Cut(sourceKey, separator)
	if !found || code == "" || filename == "" {
		return Destination{}, &InvalidNameError{Name: sourceKey}
	}
	return Destination{Container: code, Key: filename}, nil
}

// PrefixDeriver keeps the source container and writes "thumb_<key>".
type PrefixDeriver struct{}

func (PrefixDeriver) Derive(sourceContainer, sourceKey string) (Destination, error) {
	return Destination{Container: sourceContainer, Key: ThumbPrefix + sourceKey}, nil
}

// IsDerived reports whether sourceKey is itself a thumbnail written by this
// convention. Such blobs land next to their sources and raise their own
// creation events.
func (PrefixDeriver) IsDerived(sourceKey string) bool {
	return strings.HasPrefix(sourceKey, ThumbPrefix)
}

// DerivedDetector is implemented by conventions that write thumbnails where
// new sources are picked up.
type DerivedDetector interface {
	IsDerived(sourceKey string) bool
}
