package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Read for a missing object.
var ErrNotFound = errors.New("archive object not found")

// Storage holds exported run artifacts such as CSV reports.
type Storage interface {
	// Write stores data at the given path, replacing any existing object.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// URI describes where path lives, for logs and console output.
	URI(path string) string
}

// Config selects and configures a backend.
type Config struct {
	Type string   `mapstructure:"type"` // "local" or "s3"
	Path string   `mapstructure:"path"` // local base directory
	S3   S3Config `mapstructure:"s3"`
}

// New creates the backend named by cfg.Type.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// cleanPath normalizes a relative object path and rejects escapes from the
// storage root.
func cleanPath(p string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("empty archive path %q", p)
	}
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("archive path %q escapes the root", p)
	}
	return clean, nil
}
