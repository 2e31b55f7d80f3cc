package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/rolegate/rolegate/config"
)

// ErrObjectNotFound is returned when the requested asset does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object is an opened asset. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ObjectStorage serves the static assets behind /static.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.AssetsConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case config.AssetsBackendLocal, "":
		local, err := NewLocalStorage(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.AssetsBackendMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.AssetsBackendGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown assets backend %q", cfg.Backend)
	}
}

// CleanKey normalizes a request path into an object key and rejects
// anything that would escape the asset root.
func CleanKey(raw string) (string, error) {
	if strings.Contains(raw, "\\") || strings.Contains(raw, "\x00") {
		return "", ErrObjectNotFound
	}
	for _, part := range strings.Split(raw, "/") {
		if part == ".." {
			return "", ErrObjectNotFound
		}
	}
	key := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if key == "" || key == "." {
		return "", ErrObjectNotFound
	}
	return key, nil
}

// ContentTypeFor guesses a MIME type from the key's extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
