package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Disk writes files under Root and returns paths served below URLPrefix.
type Disk struct {
	Root      string
	URLPrefix string
}

func NewDisk(root string) *Disk {
	return &Disk{Root: root, URLPrefix: "/uploads"}
}

func (d *Disk) Save(ctx context.Context, filename string, r io.Reader, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	folder = filepath.Base(filepath.Clean("/" + folder))
	dir := filepath.Join(d.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write upload file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close upload file")
	}
	return path.Join(d.URLPrefix, folder, name), nil
}
