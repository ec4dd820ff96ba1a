// internal/media/media.go
// Package media uploads profile images to a remote image host.
package media

import (
	"context"
	"io"
)

// UploadResult carries the hosted image's public URL and the host-side
// identifier needed to delete it later.
type UploadResult struct {
	URL      string
	PublicID string
}

// Host is the image hosting backend. Upload stores the image and returns its
// public URL; Delete removes a previously uploaded asset.
type Host interface {
	Upload(ctx context.Context, r io.Reader, filename string) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}
