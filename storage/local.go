package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage writes files under a web root that is served statically.
type LocalStorage struct {
	root string
}

func NewLocalStorage(webRoot string) (*LocalStorage, error) {
	abs, err := filepath.Abs(webRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving web root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating web root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

func (l *LocalStorage) Root() string {
	return l.root
}

func (l *LocalStorage) SaveFile(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder = normalizeFolder(folder)
	dir, err := l.resolve(folder)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating folder %s: %w", folder, err)
	}

	name := objectName(filename)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}

	return "/" + path.Join(folder, name), nil
}

// DeleteFile removes the file behind a URL returned by SaveFile. An empty URL
// or a file that no longer exists is not an error.
func (l *LocalStorage) DeleteFile(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}

	full, err := l.resolve(strings.TrimLeft(strings.ReplaceAll(url, "\\", "/"), "/"))
	if err != nil {
		return err
	}
	if full == l.root {
		return ErrOutsideRoot
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", url, err)
	}
	return nil
}

func (l *LocalStorage) resolve(rel string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	within, err := filepath.Rel(l.root, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}
