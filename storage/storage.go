package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideRoot is returned when a URL or folder resolves outside the storage root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// FileStorage stores uploaded files and returns the URL they are served from.
type FileStorage interface {
	SaveFile(ctx context.Context, r io.Reader, filename, folder string) (string, error)
	DeleteFile(ctx context.Context, url string) error
}

// objectName returns a collision-free name that keeps the original extension.
func objectName(filename string) string {
	return uuid.NewString() + filepath.Ext(filename)
}

func normalizeFolder(folder string) string {
	folder = strings.ReplaceAll(folder, "\\", "/")
	return strings.Trim(folder, "/")
}
