package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type BucketConfig struct {
	Bucket string
	// Optional CDN host serving the bucket (no scheme).
	CDNDomain string
	// Optional absolute base URL used for public links (e.g. a local emulator).
	PublicBaseURL string
	// When set, talks to a fake-gcs-server style emulator without auth.
	EmulatorHost string
	Credentials  string
	// Prefix prepended to every object key.
	KeyPrefix string
}

// BucketService stores generated media objects in a single GCS bucket.
type BucketService struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	cdnDomain     string
	publicBaseURL string
	emulatorHost  string
	keyPrefix     string
}

func NewBucketService(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*BucketService, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing MEDIA_GCS_BUCKET")
	}
	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase != "" {
		parsed, err := url.Parse(publicBase)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid MEDIA_PUBLIC_BASE_URL=%q; expected absolute URL", cfg.PublicBaseURL)
		}
	}

	emulator := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	var opts []option.ClientOption
	if emulator != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulator)
		opts = []option.ClientOption{option.WithoutAuthentication()}
	} else {
		opts = append(ClientOptions(cfg.Credentials), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "BucketService")
	serviceLog.Info("Object storage initialized",
		"bucket", cfg.Bucket,
		"emulator_host", emulator,
		"public_base_url", publicBase,
	)

	return &BucketService{
		log:           serviceLog,
		client:        client,
		bucket:        strings.TrimSpace(cfg.Bucket),
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
		publicBaseURL: publicBase,
		emulatorHost:  emulator,
		keyPrefix:     strings.Trim(strings.TrimSpace(cfg.KeyPrefix), "/"),
	}, nil
}

func (bs *BucketService) objectKey(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.keyPrefix == "" {
		return key
	}
	return bs.keyPrefix + "/" + key
}

// Upload writes r to key. contentType falls back to the key's extension.
func (bs *BucketService) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(bs.bucket).Object(bs.objectKey(key)).NewWriter(ctx)
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *BucketService) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.client.Bucket(bs.bucket).Object(bs.objectKey(key)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bs.bucket, err)
	}
	return nil
}

// Put uploads data and returns its public URL.
func (bs *BucketService) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := bs.Upload(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return bs.PublicURL(key), nil
}

func (bs *BucketService) PublicURL(key string) string {
	return publicURL(bs.bucket, bs.objectKey(key), bs.cdnDomain, bs.publicBaseURL, bs.emulatorHost)
}

// ObjectURI maps a URL returned by Put back to its gs:// object URI. It
// reports false for URLs this bucket did not produce.
func (bs *BucketService) ObjectURI(publicURL string) (string, bool) {
	if bs == nil {
		return "", false
	}
	return objectURI(bs.bucket, publicURL, bs.cdnDomain, bs.publicBaseURL, bs.emulatorHost)
}

func (bs *BucketService) Close() error {
	if bs == nil || bs.client == nil {
		return nil
	}
	return bs.client.Close()
}

func publicURL(bucket, key, cdnDomain, publicBaseURL, emulatorHost string) string {
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cdnDomain, key)
	}
	if emulatorHost != "" {
		base := publicBaseURL
		if base == "" {
			base = emulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(bucket), url.PathEscape(key))
	}
	if publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", publicBaseURL, bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func objectURI(bucket, rawURL, cdnDomain, publicBaseURL, emulatorHost string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || bucket == "" {
		return "", false
	}
	var key string
	if emulatorHost != "" {
		base := publicBaseURL
		if base == "" {
			base = emulatorHost
		}
		prefix := fmt.Sprintf("%s/storage/v1/b/%s/o/", base, url.PathEscape(bucket))
		rest, ok := strings.CutPrefix(rawURL, prefix)
		if !ok {
			return "", false
		}
		rest, _, _ = strings.Cut(rest, "?")
		unescaped, err := url.PathUnescape(rest)
		if err != nil {
			return "", false
		}
		key = unescaped
	} else {
		prefix := publicURL(bucket, "", cdnDomain, publicBaseURL, "")
		rest, ok := strings.CutPrefix(rawURL, prefix)
		if !ok {
			return "", false
		}
		key = rest
	}
	if key == "" {
		return "", false
	}
	return "gs://" + bucket + "/" + key, true
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
