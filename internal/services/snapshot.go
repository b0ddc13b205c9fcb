package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

type ModuleView struct {
	Module         *domain.Module        `json:"module"`
	CurrentVersion *domain.ModuleVersion `json:"current_version"`
	VersionsCount  int                   `json:"versions_count"`
}

// Snapshot is a canvas with every module and its current version, in canvas
// order.
type Snapshot struct {
	Canvas  *domain.Canvas `json:"canvas"`
	Modules []ModuleView   `json:"modules"`
}

func buildSnapshot(ctx context.Context, vs store.VersionStore, canvas *domain.Canvas) (*Snapshot, error) {
	modules, err := vs.FindModulesByCanvas(ctx, canvas.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	latest, err := vs.LatestVersions(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts, err := vs.CountVersions(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := &Snapshot{Canvas: canvas, Modules: make([]ModuleView, 0, len(modules))}
	for _, m := range modules {
		out.Modules = append(out.Modules, ModuleView{
			Module:         m,
			CurrentVersion: latest[m.ID],
			VersionsCount:  counts[m.ID],
		})
	}
	return out, nil
}
