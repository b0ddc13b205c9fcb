package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

func TestUpsertCanvasGraphWithoutClient(t *testing.T) {
	c := &domain.Canvas{ID: uuid.New(), Title: "Gravity"}
	assert.NoError(t, UpsertCanvasGraph(context.Background(), nil, nil, c, nil, nil))
	assert.NoError(t, DeleteCanvasGraph(context.Background(), nil, c.ID))
}

func TestModuleNodesScopedToCanvas(t *testing.T) {
	canvasID := uuid.New()
	mods := []*domain.Module{
		{ID: uuid.New(), CanvasID: canvasID, Type: "quiz", OrderIndex: 2},
		{ID: uuid.New(), CanvasID: uuid.New(), Type: "text"},
		nil,
	}
	out := moduleNodes(canvasID, mods, "now")
	require.Len(t, out, 1)
	assert.Equal(t, "quiz", out[0]["type"])
	assert.Equal(t, 2, out[0]["order_index"])
	assert.Equal(t, canvasID.String(), out[0]["canvas_id"])
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "black holes", normalizeName("  Black   Holes "))
}
