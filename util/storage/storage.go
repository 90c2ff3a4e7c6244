// Package storage saves uploaded media and returns an opaque reference
// (a URL or path) that records keep instead of the bytes.
package storage

import (
	"context"
	"io"
)

type Blobs interface {
	Save(ctx context.Context, filename string, r io.Reader, folder string) (string, error)
}
