package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore saves uploaded images to disk under a base directory.
type FileStore struct {
	basePath string
	exts     extensionSet
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string, allowedExts []string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath, exts: newExtensionSet(allowedExts)}, nil
}

// Save writes an uploaded image under a generated name.
func (f *FileStore) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	name, err := f.exts.newName(filename)
	if err != nil {
		return "", err
	}
	target := filepath.Join(f.basePath, name)
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close file: %w", err)
	}
	return PublicPath(name), nil
}

// Delete removes a stored image.
func (f *FileStore) Delete(ctx context.Context, p string) error {
	name, err := NameFromPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(f.basePath, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Open returns a stored image and its modification time.
func (f *FileStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, time.Time, error) {
	name, err := ValidName(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	file, err := os.Open(filepath.Join(f.basePath, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, time.Time{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, time.Time{}, ErrNotFound
	}
	return file, info.ModTime(), nil
}
