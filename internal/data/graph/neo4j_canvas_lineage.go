package graph

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/platform/neo4jdb"
)

// UpsertCanvasGraph projects a canvas, its modules and, when prev is set,
// the SUPERSEDED_BY edge from prev to canvas. A nil client is a no-op.
func UpsertCanvasGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, canvas *domain.Canvas, modules []*domain.Module, prev *domain.Canvas) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if canvas == nil || canvas.ID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	canvasProps := canvasNode(canvas, now)
	moduleRels := moduleNodes(canvas.ID, modules, now)

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	for _, q := range []string{
		`CREATE CONSTRAINT canvas_id_unique IF NOT EXISTS FOR (c:Canvas) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT canvas_module_id_unique IF NOT EXISTS FOR (m:CanvasModule) REQUIRE m.id IS UNIQUE`,
		`CREATE INDEX topic_norm_idx IF NOT EXISTS FOR (t:Topic) ON (t.name_norm)`,
	} {
		if res, err := session.Run(ctx, q, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if res, err := tx.Run(ctx, `
MERGE (c:Canvas {id: $canvas.id})
SET c += $canvas
WITH c
MERGE (t:Topic {name_norm: $topic_norm})
SET t.name = $topic, t.synced_at = $synced_at
MERGE (c)-[e:ABOUT]->(t)
SET e.synced_at = $synced_at
`, map[string]any{
			"canvas":     canvasProps,
			"topic":      strings.TrimSpace(canvas.Topic),
			"topic_norm": normalizeName(canvas.Topic),
			"synced_at":  now,
		}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(moduleRels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $mods AS m
MATCH (c:Canvas {id: m.canvas_id})
MERGE (x:CanvasModule {id: m.id})
SET x += m
MERGE (c)-[e:HAS_MODULE]->(x)
SET e.order_index = m.order_index, e.synced_at = m.synced_at
`, map[string]any{"mods": moduleRels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if prev != nil && prev.ID != uuid.Nil && prev.ID != canvas.ID {
			res, err := tx.Run(ctx, `
MERGE (p:Canvas {id: $prev.id})
SET p += $prev
WITH p
MATCH (c:Canvas {id: $canvas_id})
MERGE (p)-[e:SUPERSEDED_BY]->(c)
SET e.synced_at = $synced_at
`, map[string]any{
				"prev":      canvasNode(prev, now),
				"canvas_id": canvas.ID.String(),
				"synced_at": now,
			})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// DeleteCanvasGraph removes a canvas node and its module nodes.
func DeleteCanvasGraph(ctx context.Context, client *neo4jdb.Client, canvasID uuid.UUID) error {
	if client == nil || client.Driver == nil || canvasID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Canvas {id: $id})
OPTIONAL MATCH (c)-[:HAS_MODULE]->(m:CanvasModule)
DETACH DELETE m, c
`, map[string]any{"id": canvasID.String()})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

func canvasNode(c *domain.Canvas, syncedAt string) map[string]any {
	return map[string]any{
		"id":         c.ID.String(),
		"title":      c.Title,
		"topic":      c.Topic,
		"domain":     string(c.Domain),
		"status":     string(c.Status),
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
		"synced_at":  syncedAt,
	}
}

func moduleNodes(canvasID uuid.UUID, modules []*domain.Module, syncedAt string) []map[string]any {
	out := make([]map[string]any, 0, len(modules))
	for _, m := range modules {
		if m == nil || m.ID == uuid.Nil || m.CanvasID != canvasID {
			continue
		}
		out = append(out, map[string]any{
			"id":          m.ID.String(),
			"canvas_id":   canvasID.String(),
			"type":        m.Type,
			"title":       m.Title,
			"status":      string(m.Status),
			"order_index": m.OrderIndex,
			"synced_at":   syncedAt,
		})
	}
	return out
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
