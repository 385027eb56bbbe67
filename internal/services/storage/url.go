package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidURL = errors.New("invalid blob url")

const (
	supabaseObjectPath = "storage/v1/object/"
	azuriteAccount     = "devstoreaccount1"
)

var supabaseVisibility = []string{"public/", "authenticated/", "sign/"}

// ParseBlobURL extracts the container and key from an object URL. It accepts
// https://<host>/<container>/<key> (Azure Blob, path-style S3),
// virtual-hosted S3 URLs, s3://<bucket>/<key>, Supabase object URLs and
// Azurite emulator URLs.
func ParseBlobURL(raw string) (BlobRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return BlobRef{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	var ref BlobRef
	switch strings.ToLower(u.Scheme) {
	case "s3", "gs":
		ref = BlobRef{Container: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	case "http", "https":
		ref = parseHTTPPath(u.Hostname(), strings.TrimPrefix(u.Path, "/"))
	default:
		return BlobRef{}, fmt.Errorf("%w: unsupported scheme %q in %s", ErrInvalidURL, u.Scheme, raw)
	}

	if ref.Container == "" || ref.Key == "" {
		return BlobRef{}, fmt.Errorf("%w: no container/key in %s", ErrInvalidURL, raw)
	}
	return ref, nil
}

func parseHTTPPath(host, p string) BlobRef {
	if rest, ok := strings.CutPrefix(p, supabaseObjectPath); ok {
		for _, prefix := range supabaseVisibility {
			if trimmed, ok := strings.CutPrefix(rest, prefix); ok {
				rest = trimmed
				break
			}
		}
		p = rest
	} else if bucket := virtualHostedBucket(host); bucket != "" {
		return BlobRef{Container: bucket, Key: p}
	} else if rest, ok := strings.CutPrefix(p, azuriteAccount+"/"); ok {
		p = rest
	}

	container, key, _ := strings.Cut(p, "/")
	return BlobRef{Container: container, Key: key}
}

// virtualHostedBucket returns the bucket of a <bucket>.s3.<region>.amazonaws.com host.
func virtualHostedBucket(host string) string {
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return ""
	}
	if i := strings.Index(host, ".s3."); i > 0 {
		return host[:i]
	}
	return ""
}
