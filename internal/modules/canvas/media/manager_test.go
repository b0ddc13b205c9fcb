package media

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/data/repos"
	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/data/testutil"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/dispatch"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

type fakeProvider struct {
	kind      domain.MediaKind
	createErr error
	created   JobStatus

	mu      sync.Mutex
	polls   []JobStatus
	creates int
	polled  int
}

func (f *fakeProvider) Kind() domain.MediaKind { return f.kind }

func (f *fakeProvider) Create(ctx context.Context, req CreateRequest) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return JobStatus{}, f.createErr
	}
	st := f.created
	if st.ExternalID == "" {
		st.ExternalID = "ext-" + req.JobID.String()
	}
	if st.State == "" {
		st.State = StatePending
	}
	return st, nil
}

func (f *fakeProvider) Poll(ctx context.Context, externalID string) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled++
	if len(f.polls) == 0 {
		return JobStatus{ExternalID: externalID, State: StatePending}, nil
	}
	st := f.polls[0]
	if len(f.polls) > 1 {
		f.polls = f.polls[1:]
	}
	st.ExternalID = externalID
	return st, nil
}

func (f *fakeProvider) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.polled
}

type manualScheduler struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (s *manualScheduler) Schedule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
	return nil
}

func (s *manualScheduler) Name() string { return "manual" }

type recorder struct {
	mu     sync.Mutex
	events []realtime.SSEEvent
}

func (r *recorder) Notify(ctx context.Context, canvasID uuid.UUID, event realtime.SSEEvent, data any) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store  store.VersionStore
	jobs   repos.MediaJobRepo
	mgr    *Manager
	module *domain.Module
	video  *fakeProvider
	sched  *manualScheduler
	clock  *clock
	events *recorder
}

func newFixture(t *testing.T, cfg Config, manual bool) *fixture {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		store:  store.New(gdb, log),
		jobs:   repos.NewMediaJobRepo(gdb, log),
		video:  &fakeProvider{kind: domain.MediaVideo},
		clock:  &clock{t: time.Now().UTC()},
		events: &recorder{},
	}
	deps := Deps{
		Log:       log,
		Store:     f.store,
		Jobs:      f.jobs,
		Providers: []Provider{f.video},
		Notifier:  f.events,
	}
	if manual {
		f.sched = &manualScheduler{}
		deps.Scheduler = f.sched
		deps.Clock = f.clock.Now
	}
	mgr, err := NewManager(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	f.mgr = mgr

	ctx := context.Background()
	c := &domain.Canvas{Title: "Black holes", Topic: "black holes", Domain: domain.DomainScience}
	require.NoError(t, f.store.CreateCanvas(ctx, c))
	f.module = &domain.Module{CanvasID: c.ID, Type: "video", Title: "Event horizon"}
	require.NoError(t, f.store.CreateModule(ctx, f.module))
	return f
}

func videoRequest() dispatch.MediaRequest {
	return dispatch.MediaRequest{Kind: domain.MediaVideo, ModuleType: "video", Title: "Event horizon", Prompt: "Event horizon. Topic: black holes."}
}

func (f *fixture) latest(t *testing.T) content.Payload {
	t.Helper()
	v, err := f.store.FindLatestVersion(context.Background(), f.module.ID)
	require.NoError(t, err)
	p, err := content.Decode(v.ContentJSON)
	require.NoError(t, err)
	return p
}

func (f *fixture) moduleStatus(t *testing.T) domain.ModuleStatus {
	t.Helper()
	m, err := f.store.FindModule(context.Background(), f.module.ID)
	require.NoError(t, err)
	return m.Status
}

func (f *fixture) job(t *testing.T, id uuid.UUID) *domain.MediaJob {
	t.Helper()
	j, err := f.jobs.GetByID(dbctx.Background(context.Background()), id)
	require.NoError(t, err)
	return j
}

func TestRequestCommitsPlaceholderAndQueues(t *testing.T) {
	f := newFixture(t, Config{}, true)
	v, job, err := f.mgr.Request(context.Background(), f.module, "video please", videoRequest())
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, domain.ModuleGenerating, f.moduleStatus(t))
	assert.True(t, content.IsPlaceholder(f.latest(t)))
	assert.Equal(t, domain.MediaJobQueued, job.Status)
	assert.Equal(t, []uuid.UUID{job.ID}, f.sched.ids)
	assert.Contains(t, f.events.events, realtime.SSEEventMediaJobUpdated)
}

func TestRequestWithoutProviderWritesNothing(t *testing.T) {
	f := newFixture(t, Config{}, true)
	req := videoRequest()
	req.Kind = domain.MediaImage
	_, _, err := f.mgr.Request(context.Background(), f.module, "", req)
	assert.ErrorIs(t, err, ErrNoProvider)

	versions, err := f.store.FindAllVersions(context.Background(), f.module.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestStepDrivesJobToReady(t *testing.T) {
	f := newFixture(t, Config{}, true)
	f.video.polls = []JobStatus{{State: StateCompleted, URL: "https://cdn.example.com/v.mp4"}}
	ctx := context.Background()
	_, job, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)

	done, err := f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, done)
	got := f.job(t, job.ID)
	assert.Equal(t, domain.MediaJobPolling, got.Status)
	assert.Equal(t, "ext-"+job.ID.String(), got.ExternalJobID)

	done, err = f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, domain.ModuleReady, f.moduleStatus(t))
	video, ok := f.latest(t).(content.Video)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/v.mp4", video.VideoURL)
	assert.False(t, video.Pending)

	got = f.job(t, job.ID)
	assert.Equal(t, domain.MediaJobCompleted, got.Status)
	assert.NotNil(t, got.FinishedAt)

	done, err = f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done)
	creates, _ := f.video.counts()
	assert.Equal(t, 1, creates)
}

func TestDeadlineCommitsTimeoutError(t *testing.T) {
	f := newFixture(t, Config{VideoTimeout: time.Minute}, true)
	ctx := context.Background()
	_, job, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)
	_, err = f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	done, err := f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, domain.ModuleError, f.moduleStatus(t))
	p := f.latest(t)
	assert.False(t, content.IsPlaceholder(p))
	e, ok := p.(content.Error)
	require.True(t, ok)
	assert.Equal(t, content.ReasonTimeout, e.Reason)
	assert.Equal(t, "video", e.ModuleType)
	assert.Equal(t, domain.MediaJobTimeout, f.job(t, job.ID).Status)
}

func TestProviderFailureCommitsError(t *testing.T) {
	f := newFixture(t, Config{}, true)
	f.video.created = JobStatus{State: StateFailed, Error: "content policy"}
	ctx := context.Background()
	_, job, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)

	done, err := f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done)
	e, ok := f.latest(t).(content.Error)
	require.True(t, ok)
	assert.Equal(t, content.ReasonFailed, e.Reason)
	assert.Contains(t, e.Message, "content policy")
	assert.Equal(t, domain.MediaJobFailed, f.job(t, job.ID).Status)
}

func TestCreateErrorCommitsError(t *testing.T) {
	f := newFixture(t, Config{}, true)
	f.video.createErr = errors.New("quota exceeded")
	ctx := context.Background()
	_, job, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)

	done, err := f.mgr.Step(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, domain.ModuleError, f.moduleStatus(t))
	assert.Equal(t, domain.MediaJobFailed, f.job(t, job.ID).Status)
}

func TestCommitCompletedTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{}, true)
	ctx := context.Background()
	_, job, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)

	st := JobStatus{State: StateCompleted, URL: "https://cdn.example.com/x.mp4"}
	require.NoError(t, f.mgr.commitCompleted(ctx, f.job(t, job.ID), st))
	require.NoError(t, f.mgr.commitCompleted(ctx, f.job(t, job.ID), st))

	versions, err := f.store.FindAllVersions(ctx, f.module.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.JSONEq(t, string(versions[0].ContentJSON), string(versions[1].ContentJSON))
	assert.Equal(t, domain.ModuleReady, f.moduleStatus(t))
	assert.Equal(t, domain.MediaJobCompleted, f.job(t, job.ID).Status)
}

func TestSupersededJobLeavesModuleAlone(t *testing.T) {
	f := newFixture(t, Config{}, true)
	f.video.created = JobStatus{State: StateCompleted, URL: "https://cdn.example.com/old.mp4"}
	ctx := context.Background()
	_, older, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, newer, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)

	done, err := f.mgr.Step(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, domain.MediaJobSuperseded, f.job(t, older.ID).Status)
	assert.Equal(t, domain.ModuleGenerating, f.moduleStatus(t))
	assert.True(t, content.IsPlaceholder(f.latest(t)))
	assert.Equal(t, domain.MediaJobQueued, f.job(t, newer.ID).Status)
}

func TestCheckStatusPollsOnDemand(t *testing.T) {
	f := newFixture(t, Config{}, true)
	ctx := context.Background()

	job, err := f.mgr.CheckStatus(ctx, f.module.ID)
	require.NoError(t, err)
	assert.Nil(t, job)
	_, err = f.mgr.CheckStatus(ctx, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, queued, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)
	job, err = f.mgr.CheckStatus(ctx, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, queued.ID, job.ID)
	assert.Equal(t, domain.MediaJobPolling, job.Status)

	f.video.polls = []JobStatus{{State: StateCompleted, URL: "https://cdn.example.com/r.mp4"}}
	job, err = f.mgr.CheckStatus(ctx, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaJobCompleted, job.Status)
	assert.Equal(t, domain.ModuleReady, f.moduleStatus(t))

	job, err = f.mgr.CheckStatus(ctx, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaJobCompleted, job.Status)
	_, polled := f.video.counts()
	assert.Equal(t, 1, polled)
}

func TestLocalPollingCompletes(t *testing.T) {
	f := newFixture(t, Config{PollInterval: 10 * time.Millisecond}, false)
	f.video.polls = []JobStatus{{State: StatePending}, {State: StateCompleted, URL: "https://cdn.example.com/l.mp4"}}
	_, job, err := f.mgr.Request(context.Background(), f.module, "", videoRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.moduleStatus(t) == domain.ModuleReady
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.MediaJobCompleted, f.job(t, job.ID).Status)
}

func TestRecoverResumesActiveJobs(t *testing.T) {
	f := newFixture(t, Config{PollInterval: 10 * time.Millisecond}, false)
	ctx := context.Background()
	_, err := f.store.CommitVersion(ctx, f.module.ID, "", content.Video{Title: "Event horizon", Pending: true}, domain.ModuleGenerating)
	require.NoError(t, err)
	job := &domain.MediaJob{
		ModuleID:   f.module.ID,
		CanvasID:   f.module.CanvasID,
		Kind:       domain.MediaVideo,
		ModuleType: "video",
		Title:      "Event horizon",
		Status:     domain.MediaJobCreating,
		DeadlineAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, f.jobs.Create(dbctx.Background(ctx), job))
	f.video.polls = []JobStatus{{State: StateCompleted, URL: "https://cdn.example.com/rec.mp4"}}

	n, err := f.mgr.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool {
		return f.moduleStatus(t) == domain.ModuleReady
	}, 5*time.Second, 10*time.Millisecond)
	creates, _ := f.video.counts()
	assert.Equal(t, 1, creates)
}

func TestStatusCountsEveryState(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrentPolls: 3}, true)
	ctx := context.Background()
	_, _, err := f.mgr.Request(ctx, f.module, "", videoRequest())
	require.NoError(t, err)

	snap, err := f.mgr.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Counts[domain.MediaJobQueued])
	assert.Equal(t, 0, snap.Counts[domain.MediaJobCompleted])
	assert.Len(t, snap.Counts, 7)
	assert.Equal(t, 1, snap.Active)
	assert.Equal(t, 3, snap.Capacity)
	assert.Equal(t, "manual", snap.Executor)
}

type fakeLease struct {
	mu       sync.Mutex
	renewOK  bool
	released bool
}

func (l *fakeLease) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renewOK, nil
}

func (l *fakeLease) Release(ctx context.Context) error {
	l.mu.Lock()
	l.released = true
	l.mu.Unlock()
	return nil
}

// fakeLocker hands out a first lease that expires on its first renewal.
// With othersOwn set, every later Acquire finds the key held elsewhere.
type fakeLocker struct {
	othersOwn bool

	mu     sync.Mutex
	leases []*fakeLease
	calls  int
}

func (l *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.calls > 1 && l.othersOwn {
		return nil, nil
	}
	le := &fakeLease{renewOK: l.calls > 1}
	l.leases = append(l.leases, le)
	return le, nil
}

func (l *fakeLocker) acquires() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// newLocalFixture polls in-process with extra deps applied by with.
func newLocalFixture(t *testing.T, with func(*Deps)) *fixture {
	t.Helper()
	f := newFixture(t, Config{PollInterval: 10 * time.Millisecond}, false)
	deps := Deps{
		Log:       testutil.Logger(t),
		Store:     f.store,
		Jobs:      f.jobs,
		Providers: []Provider{f.video},
		Notifier:  f.events,
	}
	with(&deps)
	mgr, err := NewManager(Config{PollInterval: 10 * time.Millisecond}, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	f.mgr = mgr
	return f
}

func TestExpiredLeaseIsReacquired(t *testing.T) {
	locker := &fakeLocker{}
	f := newLocalFixture(t, func(d *Deps) { d.Locker = locker })
	f.video.polls = []JobStatus{{State: StatePending}, {State: StateCompleted, URL: "https://cdn.example.com/lease.mp4"}}

	_, job, err := f.mgr.Request(context.Background(), f.module, "", videoRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.moduleStatus(t) == domain.ModuleReady
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.MediaJobCompleted, f.job(t, job.ID).Status)
	assert.Equal(t, 2, locker.acquires())

	require.NoError(t, f.mgr.Shutdown(context.Background()))
	locker.mu.Lock()
	defer locker.mu.Unlock()
	require.Len(t, locker.leases, 2)
	assert.True(t, locker.leases[1].released)
}

func TestLeaseTakenOverStopsLocalPoller(t *testing.T) {
	locker := &fakeLocker{othersOwn: true}
	f := newLocalFixture(t, func(d *Deps) { d.Locker = locker })

	_, job, err := f.mgr.Request(context.Background(), f.module, "", videoRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return locker.acquires() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, f.mgr.Shutdown(context.Background()))

	_, polled := f.video.counts()
	assert.Equal(t, 0, polled)
	assert.Equal(t, domain.MediaJobPolling, f.job(t, job.ID).Status)
	assert.Equal(t, domain.ModuleGenerating, f.moduleStatus(t))
}

type fakeAnnotator struct {
	transcript string
	err        error

	mu   sync.Mutex
	urls []string
}

func (a *fakeAnnotator) DescribeImage(ctx context.Context, mediaURL string) (string, error) {
	return "", errors.New("not used")
}

func (a *fakeAnnotator) TranscribeVideo(ctx context.Context, mediaURL string) (string, error) {
	a.mu.Lock()
	a.urls = append(a.urls, mediaURL)
	a.mu.Unlock()
	return a.transcript, a.err
}

func TestCompletedVideoCarriesTranscript(t *testing.T) {
	ann := &fakeAnnotator{transcript: "  The apple falls.\n[on_screen] g = 9.8 m/s^2 "}
	f := newLocalFixture(t, func(d *Deps) { d.Annotator = ann })
	f.video.polls = []JobStatus{{State: StateCompleted, URL: "https://storage.googleapis.com/b/media/videos/x.mp4"}}

	_, _, err := f.mgr.Request(context.Background(), f.module, "", videoRequest())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.moduleStatus(t) == domain.ModuleReady
	}, 5*time.Second, 10*time.Millisecond)

	v, ok := f.latest(t).(content.Video)
	require.True(t, ok)
	assert.Equal(t, "The apple falls.\n[on_screen] g = 9.8 m/s^2", v.Transcript)
	assert.Equal(t, []string{"https://storage.googleapis.com/b/media/videos/x.mp4"}, ann.urls)
}

func TestAnnotationFailureStillCompletes(t *testing.T) {
	ann := &fakeAnnotator{err: errors.New("videointelligence unavailable")}
	f := newLocalFixture(t, func(d *Deps) { d.Annotator = ann })
	f.video.polls = []JobStatus{{State: StateCompleted, URL: "https://cdn.example.com/y.mp4"}}

	_, job, err := f.mgr.Request(context.Background(), f.module, "", videoRequest())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.moduleStatus(t) == domain.ModuleReady
	}, 5*time.Second, 10*time.Millisecond)

	v, ok := f.latest(t).(content.Video)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/y.mp4", v.VideoURL)
	assert.Empty(t, v.Transcript)
	assert.Equal(t, domain.MediaJobCompleted, f.job(t, job.ID).Status)
}
