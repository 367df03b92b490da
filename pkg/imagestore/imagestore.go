// Package imagestore persists book cover images and resolves them to public
// URLs. The service layer only ever stores and echoes these URLs; how the
// bytes are kept (local disk, S3-compatible bucket) is this package's
// business.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store saves and removes cover images by public URL.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, url string) error
}

// Local stores images as files under a directory served statically at
// baseURL + "/images/".
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates a Local store rooted at dir. The directory is created if
// it does not exist.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Save writes the image under a fresh name so uploads can never collide or
// overwrite each other, and returns its public URL.
func (l *Local) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	name := uuid.New().String() + safeExt(filename)
	path := filepath.Join(l.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return l.baseURL + "/images/" + name, nil
}

// Remove deletes the file a previously returned URL points at. URLs that do
// not belong to this store are rejected rather than resolved.
func (l *Local) Remove(ctx context.Context, url string) error {
	name, err := objectName(url)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", name, err)
	}
	return nil
}

// objectName extracts the object name from a store URL, refusing anything
// that would escape the images namespace.
func objectName(url string) (string, error) {
	idx := strings.LastIndex(url, "/images/")
	if idx < 0 {
		return "", fmt.Errorf("not an image store URL: %s", url)
	}
	name := url[idx+len("/images/"):]
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid image name in URL: %s", url)
	}
	return name, nil
}

// safeExt keeps the original file extension when it looks sane.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ""
}
