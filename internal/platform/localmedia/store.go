package localmedia

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

// Store writes media objects under a directory that the HTTP server exposes
// at URLPrefix. Used when no GCS bucket is configured.
type Store struct {
	log       *logger.Logger
	root      string
	urlPrefix string
}

func New(log *logger.Logger, root, urlPrefix string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("localmedia: root dir required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("localmedia: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("localmedia: create root: %w", err)
	}
	urlPrefix = strings.TrimRight(strings.TrimSpace(urlPrefix), "/")
	if urlPrefix == "" {
		urlPrefix = "/media"
	}
	return &Store{log: log.With("service", "LocalMediaStore"), root: abs, urlPrefix: urlPrefix}, nil
}

func (s *Store) Root() string { return s.root }

// Put writes data atomically (temp file + rename) and returns its URL.
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := s.cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("localmedia: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("localmedia: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("localmedia: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("localmedia: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("localmedia: rename: %w", err)
	}
	s.log.Debug("Stored media object", "key", clean, "bytes", len(data), "content_type", contentType)
	return s.urlPrefix + "/" + clean, nil
}

func (s *Store) cleanKey(key string) (string, error) {
	k := filepath.ToSlash(filepath.Clean("/" + strings.TrimSpace(key)))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("localmedia: empty key")
	}
	return k, nil
}
