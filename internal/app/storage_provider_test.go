package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/platform/gcp"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type stubStore struct{}

func (stubStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return "https://storage.example.com/" + key, nil
}

func withBucketFactory(t *testing.T, fn func(context.Context, *logger.Logger, gcp.BucketConfig) (media.MediaStore, error)) {
	t.Helper()
	prev := newBucketService
	newBucketService = fn
	t.Cleanup(func() { newBucketService = prev })
}

func TestResolveMediaStoreLocal(t *testing.T) {
	dir := t.TempDir()
	store, root, err := resolveMediaStore(context.Background(), logger.Nop(), config.MediaConfig{LocalDir: dir, LocalURLPrefix: "/media"})
	require.NoError(t, err)
	assert.NotEmpty(t, root)

	u, err := store.Put(context.Background(), "thumbnails/a.png", "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "/media/thumbnails/a.png", u)
}

func TestResolveMediaStoreGCS(t *testing.T) {
	var got gcp.BucketConfig
	withBucketFactory(t, func(ctx context.Context, log *logger.Logger, cfg gcp.BucketConfig) (media.MediaStore, error) {
		got = cfg
		return stubStore{}, nil
	})

	store, root, err := resolveMediaStore(context.Background(), logger.Nop(), config.MediaConfig{
		GCSBucket:       "canvas-media",
		GCSEmulatorHost: "http://localhost:4443",
	})
	require.NoError(t, err)
	assert.Empty(t, root)
	assert.IsType(t, stubStore{}, store)
	assert.Equal(t, "canvas-media", got.Bucket)
	assert.Equal(t, "http://localhost:4443", got.EmulatorHost)
}

func TestResolveMediaStoreErrors(t *testing.T) {
	withBucketFactory(t, func(ctx context.Context, log *logger.Logger, cfg gcp.BucketConfig) (media.MediaStore, error) {
		return nil, errors.New("dial tcp: refused")
	})

	_, _, err := resolveMediaStore(context.Background(), logger.Nop(), config.MediaConfig{GCSBucket: "b"})
	var bootErr *StorageProviderBootstrapError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, StorageProviderBootstrapErrorConnectFailed, bootErr.Code)
	assert.Contains(t, err.Error(), "refused")

	_, _, err = resolveMediaStore(context.Background(), logger.Nop(), config.MediaConfig{GCSBucket: "b", PublicBaseURL: "cdn.example.com"})
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, StorageProviderBootstrapErrorInvalidPublicURL, bootErr.Code)
}
