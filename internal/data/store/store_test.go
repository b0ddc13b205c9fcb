package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/data/repos"
	"github.com/yungbote/neurocanvas-backend/internal/data/testutil"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
)

func newCanvas(t *testing.T, s VersionStore, title string) *domain.Canvas {
	t.Helper()
	c := &domain.Canvas{Title: title, Topic: title, Domain: domain.DomainScience}
	require.NoError(t, s.CreateCanvas(context.Background(), c))
	return c
}

func newModule(t *testing.T, s VersionStore, canvasID uuid.UUID, typ string, order int) *domain.Module {
	t.Helper()
	m := &domain.Module{CanvasID: canvasID, Type: typ, Title: typ, OrderIndex: order}
	require.NoError(t, s.CreateModule(context.Background(), m))
	return m
}

func TestCanvasLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))

	a := newCanvas(t, s, "gravity")
	b := newCanvas(t, s, "orbits")
	assert.Equal(t, domain.CanvasActive, a.Status)

	got, err := s.FindCanvas(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "gravity", got.Title)

	_, err = s.FindCanvas(ctx, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.ArchiveCanvas(ctx, a.ID, &b.ID))
	require.NoError(t, s.ArchiveCanvas(ctx, a.ID, &b.ID))
	assert.ErrorIs(t, s.ArchiveCanvas(ctx, uuid.New(), nil), errs.ErrNotFound)

	active, err := s.ListCanvases(ctx, domain.CanvasActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	all, err := s.ListCanvases(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	archived, err := s.FindCanvas(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CanvasArchived, archived.Status)
	require.NotNil(t, archived.SupersededBy)
	assert.Equal(t, b.ID, *archived.SupersededBy)
}

func TestArchiveKeepsModulesAndVersions(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "gravity")
	m := newModule(t, s, c.ID, "definition", 0)
	_, err := s.CommitVersion(ctx, m.ID, "init", content.Text{Title: "Gravity", Body: "pulls"}, domain.ModuleReady)
	require.NoError(t, err)

	require.NoError(t, s.ArchiveCanvas(ctx, c.ID, nil))

	mods, err := s.FindModulesByCanvas(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	v, err := s.FindLatestVersion(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "init", v.Prompt)
}

func TestModulesOrderedByIndexThenCreation(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "apple")
	m2 := newModule(t, s, c.ID, "quiz", 2)
	m0 := newModule(t, s, c.ID, "definition", 0)
	m1a := newModule(t, s, c.ID, "examples", 1)
	m1b := newModule(t, s, c.ID, "story", 1)

	mods, err := s.FindModulesByCanvas(ctx, c.ID)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, m := range mods {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []uuid.UUID{m0.ID, m1a.ID, m1b.ID, m2.ID}, ids)

	next, err := s.NextOrderIndex(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	empty := newCanvas(t, s, "empty")
	next, err = s.NextOrderIndex(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
}

func TestCreateModuleForMissingCanvas(t *testing.T) {
	s := New(testutil.DB(t), testutil.Logger(t))
	err := s.CreateModule(context.Background(), &domain.Module{CanvasID: uuid.New(), Type: "text"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateModuleOrderLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "apple")
	a := newModule(t, s, c.ID, "a", 0)
	b := newModule(t, s, c.ID, "b", 1)

	require.NoError(t, s.UpdateModuleOrder(ctx, []OrderAssignment{
		{ModuleID: a.ID, OrderIndex: 5},
		{ModuleID: b.ID, OrderIndex: 0},
		{ModuleID: a.ID, OrderIndex: 1},
	}))
	mods, err := s.FindModulesByCanvas(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, b.ID, mods[0].ID)
	assert.Equal(t, 1, mods[1].OrderIndex)

	err = s.UpdateModuleOrder(ctx, []OrderAssignment{
		{ModuleID: a.ID, OrderIndex: 9},
		{ModuleID: uuid.New(), OrderIndex: 0},
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	got, err := s.FindModule(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OrderIndex, "failed batch must not apply")
}

func TestUpdateModuleSizeAndStatus(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "apple")
	m := newModule(t, s, c.ID, "text", 0)
	assert.Equal(t, domain.ModuleGenerating, m.Status)
	assert.Equal(t, 1, m.Width)

	require.NoError(t, s.UpdateModuleSize(ctx, m.ID, 2, 3))
	require.NoError(t, s.UpdateModuleStatus(ctx, m.ID, domain.ModuleError))
	got, err := s.FindModule(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Width)
	assert.Equal(t, 3, got.Height)
	assert.Equal(t, domain.ModuleError, got.Status)

	assert.ErrorIs(t, s.UpdateModuleSize(ctx, m.ID, 0, 1), errs.ErrInvalidArgument)
	assert.ErrorIs(t, s.UpdateModuleSize(ctx, uuid.New(), 1, 1), errs.ErrNotFound)
	assert.ErrorIs(t, s.UpdateModuleStatus(ctx, uuid.New(), domain.ModuleReady), errs.ErrNotFound)
}

func TestLatestVersionIsMostRecent(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "apple")
	m := newModule(t, s, c.ID, "text", 0)

	_, err := s.FindLatestVersion(ctx, m.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	var last *domain.ModuleVersion
	for i := 0; i < 5; i++ {
		last, err = s.CreateVersion(ctx, m.ID, "edit", content.Text{Title: "v", Body: string(rune('a' + i))})
		require.NoError(t, err)
	}
	latest, err := s.FindLatestVersion(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, latest.ID)

	all, err := s.FindAllVersions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, last.ID, all[0].ID)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].CreatedAt.After(all[i].CreatedAt))
	}

	p, err := content.Decode(latest.ContentJSON)
	require.NoError(t, err)
	assert.Equal(t, "e", p.(content.Text).Body)
}

func TestLatestVersionUsesCreatedAtNotInsertOrder(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	s := New(gdb, log)
	c := newCanvas(t, s, "apple")
	m := newModule(t, s, c.ID, "text", 0)

	vr := repos.NewModuleVersionRepo(gdb, log)
	base := time.Now().UTC().Truncate(time.Microsecond)
	newer := &domain.ModuleVersion{ModuleID: m.ID, Prompt: "newer", ContentJSON: []byte(`{"type":"text","title":"n"}`), CreatedAt: base}
	older := &domain.ModuleVersion{ModuleID: m.ID, Prompt: "backfilled", ContentJSON: []byte(`{"type":"text","title":"o"}`), CreatedAt: base.Add(-time.Hour)}
	require.NoError(t, vr.Create(dbctx.Background(ctx), newer))
	require.NoError(t, vr.Create(dbctx.Background(ctx), older))

	latest, err := s.FindLatestVersion(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.Prompt)

	latestMap, err := s.LatestVersions(ctx, []uuid.UUID{m.ID})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latestMap[m.ID].ID)
}

func TestCreateVersionForMissingModule(t *testing.T) {
	s := New(testutil.DB(t), testutil.Logger(t))
	_, err := s.CreateVersion(context.Background(), uuid.New(), "p", content.Text{Title: "x"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.CommitVersion(context.Background(), uuid.New(), "p", content.Text{Title: "x"}, domain.ModuleReady)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCommitVersionSetsStatus(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "apple")
	m := newModule(t, s, c.ID, "quiz", 0)

	v, err := s.CommitVersion(ctx, m.ID, "init", content.Error{Title: "Quiz", Message: "boom", Reason: content.ReasonGenerationFailed, ModuleType: "quiz"}, domain.ModuleError)
	require.NoError(t, err)
	got, err := s.FindModule(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleError, got.Status)

	p, err := content.Decode(v.ContentJSON)
	require.NoError(t, err)
	assert.True(t, content.IsError(p))

	counts, err := s.CountVersions(ctx, []uuid.UUID{m.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[m.ID])
}

func TestDeleteModuleCascades(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	s := New(gdb, log)
	c := newCanvas(t, s, "apple")
	m := newModule(t, s, c.ID, "video", 0)
	keep := newModule(t, s, c.ID, "text", 1)
	_, err := s.CreateVersion(ctx, m.ID, "p", content.Video{Title: "v", Pending: true})
	require.NoError(t, err)
	_, err = s.CreateVersion(ctx, keep.ID, "p", content.Text{Title: "t"})
	require.NoError(t, err)
	jobs := repos.NewMediaJobRepo(gdb, log)
	job := &domain.MediaJob{ModuleID: m.ID, CanvasID: c.ID, Kind: domain.MediaVideo, ModuleType: "video", DeadlineAt: time.Now()}
	require.NoError(t, jobs.Create(dbctx.Background(ctx), job))

	require.NoError(t, s.DeleteModule(ctx, m.ID))
	assert.ErrorIs(t, s.DeleteModule(ctx, m.ID), errs.ErrNotFound)

	_, err = s.FindModule(ctx, m.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.FindLatestVersion(ctx, m.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = jobs.GetByID(dbctx.Background(ctx), job.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = s.FindLatestVersion(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestDeleteCanvasCascades(t *testing.T) {
	ctx := context.Background()
	s := New(testutil.DB(t), testutil.Logger(t))
	c := newCanvas(t, s, "apple")
	other := newCanvas(t, s, "pear")
	m := newModule(t, s, c.ID, "text", 0)
	o := newModule(t, s, other.ID, "text", 0)
	_, err := s.CreateVersion(ctx, m.ID, "p", content.Text{Title: "t"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCanvas(ctx, c.ID))
	assert.ErrorIs(t, s.DeleteCanvas(ctx, c.ID), errs.ErrNotFound)

	_, err = s.FindModule(ctx, m.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.FindLatestVersion(ctx, m.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.FindModule(ctx, o.ID)
	assert.NoError(t, err)
}
