package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/platform/gcp"
	"github.com/yungbote/neurocanvas-backend/internal/platform/localmedia"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

var (
	newBucketService = func(ctx context.Context, log *logger.Logger, cfg gcp.BucketConfig) (media.MediaStore, error) {
		return gcp.NewBucketService(ctx, log, cfg)
	}
	newLocalStore = func(log *logger.Logger, dir, prefix string) (*localmedia.Store, error) {
		return localmedia.New(log, dir, prefix)
	}
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidPublicURL StorageProviderBootstrapErrorCode = "invalid_public_url"
	StorageProviderBootstrapErrorConnectFailed    StorageProviderBootstrapErrorCode = "connect_failed"
	StorageProviderBootstrapErrorLocalDir         StorageProviderBootstrapErrorCode = "local_dir_unavailable"
)

type StorageProviderBootstrapError struct {
	Code  StorageProviderBootstrapErrorCode
	Mode  string
	Cause error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "media storage bootstrap failed"
	}
	return fmt.Sprintf("media storage bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveMediaStore picks GCS when a bucket is configured and the local
// directory store otherwise. The returned dir is non-empty only for the
// local store, which the HTTP server then exposes as static files.
func resolveMediaStore(ctx context.Context, log *logger.Logger, cfg config.MediaConfig) (media.MediaStore, string, error) {
	if bucket := strings.TrimSpace(cfg.GCSBucket); bucket != "" {
		log.Info("Selecting media storage provider", "mode", "gcs", "bucket", bucket, "emulator_host", cfg.GCSEmulatorHost)
		if raw := strings.TrimSpace(cfg.PublicBaseURL); raw != "" {
			if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
				return nil, "", &StorageProviderBootstrapError{
					Code:  StorageProviderBootstrapErrorInvalidPublicURL,
					Mode:  "gcs",
					Cause: fmt.Errorf("public base url %q is not absolute", raw),
				}
			}
		}
		store, err := newBucketService(ctx, log, gcp.BucketConfig{
			Bucket:        bucket,
			CDNDomain:     cfg.GCSCDNDomain,
			PublicBaseURL: cfg.PublicBaseURL,
			EmulatorHost:  cfg.GCSEmulatorHost,
			Credentials:   cfg.GCSCredentials,
			KeyPrefix:     "media",
		})
		if err != nil {
			log.Error("Media storage provider bootstrap failed", "mode", "gcs", "error", err)
			return nil, "", &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorConnectFailed, Mode: "gcs", Cause: err}
		}
		return store, "", nil
	}

	log.Info("Selecting media storage provider", "mode", "local", "dir", cfg.LocalDir, "url_prefix", cfg.LocalURLPrefix)
	store, err := newLocalStore(log, cfg.LocalDir, cfg.LocalURLPrefix)
	if err != nil {
		return nil, "", &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorLocalDir, Mode: "local", Cause: err}
	}
	return store, store.Root(), nil
}
