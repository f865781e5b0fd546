package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PathPrefix is the public path under which stored images are served.
const PathPrefix = "/uploads/"

var (
	ErrInvalidName     = errors.New("invalid image name")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrNotFound        = errors.New("image not found")
)

// DefaultExtensions are the image extensions accepted when none are configured.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ImageStore maps an uploaded image to a stable public path.
type ImageStore interface {
	// Save stores r and returns its public path ("/uploads/<name>").
	Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
	// Delete removes the image at a path returned by Save. Missing images
	// are not an error.
	Delete(ctx context.Context, path string) error
}

// Opener is implemented by stores that serve image bytes directly.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadSeekCloser, time.Time, error)
}

// Presigner is implemented by stores that hand out temporary URLs.
type Presigner interface {
	PresignGet(ctx context.Context, name string, expiry time.Duration) (string, error)
}

type extensionSet map[string]struct{}

func newExtensionSet(exts []string) extensionSet {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(extensionSet, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// newName returns a fresh object name that keeps the upload's extension.
func (s extensionSet) newName(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if _, ok := s[ext]; !ok {
		return "", ErrUnsupportedType
	}
	return uuid.NewString() + ext, nil
}

// PublicPath returns the served path for an object name.
func PublicPath(name string) string {
	return PathPrefix + name
}

// NameFromPath extracts and validates the object name of a public path.
func NameFromPath(p string) (string, error) {
	name := strings.TrimPrefix(p, PathPrefix)
	return ValidName(name)
}

// ValidName rejects names that could escape the image directory.
func ValidName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || path.Base(name) != name {
		return "", ErrInvalidName
	}
	return name, nil
}
