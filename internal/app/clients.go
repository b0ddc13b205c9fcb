package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/media"
	"github.com/yungbote/neurocanvas-backend/internal/platform/gcp"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/neo4jdb"
	"github.com/yungbote/neurocanvas-backend/internal/platform/openai"
	"github.com/yungbote/neurocanvas-backend/internal/platform/redisx"
	"github.com/yungbote/neurocanvas-backend/internal/temporalx"
)

// Clients holds connections to external systems. Every field except
// MediaStore may be nil when the matching config is absent.
type Clients struct {
	OpenAI     openai.Client
	Redis      *goredis.Client
	Neo4j      *neo4jdb.Client
	Temporal   temporalsdkclient.Client
	MediaStore media.MediaStore
	// MediaDir is set when MediaStore writes to the local filesystem.
	MediaDir string
	// Annotator is set when annotation is enabled and media lives in GCS.
	Annotator *gcp.Annotator

	closers []func(context.Context) error
}

func wireClients(ctx context.Context, log *logger.Logger, cfg config.AppConfig) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	if cfg.OpenAI.Enabled() {
		temp := cfg.OpenAI.Temperature
		ai, err := openai.NewClient(log, openai.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			ImageModel:     cfg.OpenAI.ImageModel,
			ImageSize:      cfg.OpenAI.ImageSize,
			VideoModel:     cfg.OpenAI.VideoModel,
			VideoSize:      cfg.OpenAI.VideoSize,
			TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
			MaxRetries:     cfg.OpenAI.MaxRetries,
			Temperature:    &temp,
		})
		if err != nil {
			return c, fmt.Errorf("init openai client: %w", err)
		}
		c.OpenAI = ai
	} else {
		log.Warn("OPENAI_API_KEY not set; plans use templates and module generation will fail")
	}

	rdb, err := redisx.NewClient(ctx, log, redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		c.Close(ctx)
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	if rdb != nil {
		c.Redis = rdb
		c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	}

	graph, err := neo4jdb.New(log, neo4jdb.Config{
		URI:            cfg.Neo4j.URI,
		User:           cfg.Neo4j.User,
		Password:       cfg.Neo4j.Password,
		Database:       cfg.Neo4j.Database,
		TimeoutSeconds: cfg.Neo4j.TimeoutSeconds,
		MaxPoolSize:    cfg.Neo4j.MaxPoolSize,
	})
	if err != nil {
		// The lineage projection is best-effort; the API works without it.
		log.Warn("Neo4j unavailable; canvas lineage projection disabled", "error", err)
	} else if graph != nil {
		c.Neo4j = graph
		c.closers = append(c.closers, graph.Close)
	}

	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		c.Close(ctx)
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	if tc != nil {
		c.Temporal = tc
		c.closers = append(c.closers, func(context.Context) error { tc.Close(); return nil })
	}

	store, dir, err := resolveMediaStore(ctx, log, cfg.Media)
	if err != nil {
		c.Close(ctx)
		return Clients{}, err
	}
	c.MediaStore, c.MediaDir = store, dir
	if closer, ok := store.(interface{ Close() error }); ok {
		c.closers = append(c.closers, func(context.Context) error { return closer.Close() })
	}

	if cfg.Media.AnnotateImages || cfg.Media.AnnotateVideos {
		bucket, ok := store.(*gcp.BucketService)
		if !ok {
			log.Warn("media annotation needs a GCS bucket; skipping", "media_dir", dir)
			return c, nil
		}
		ann, err := gcp.NewAnnotator(ctx, log, bucket, gcp.AnnotatorConfig{
			Credentials:  cfg.Media.GCSCredentials,
			Images:       cfg.Media.AnnotateImages,
			Videos:       cfg.Media.AnnotateVideos,
			LanguageCode: cfg.Media.AnnotateLanguage,
		})
		if err != nil {
			// Digests fall back to titles without annotation.
			log.Warn("media annotator unavailable", "error", err)
			return c, nil
		}
		c.Annotator = ann
		c.closers = append(c.closers, func(context.Context) error { return ann.Close() })
	}
	return c, nil
}

// Close releases clients in reverse order of creation.
func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i](ctx)
	}
	c.closers = nil
}
