package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/neurocanvas-backend/internal/data/repos"
	"github.com/yungbote/neurocanvas-backend/internal/data/store"
	"github.com/yungbote/neurocanvas-backend/internal/domain"
	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
	"github.com/yungbote/neurocanvas-backend/internal/modules/canvas/dispatch"
	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/ctxutil"
	"github.com/yungbote/neurocanvas-backend/internal/platform/dbctx"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

var ErrNoProvider = errors.New("media provider not configured")

type Config struct {
	PollInterval       time.Duration
	VideoTimeout       time.Duration
	ImageTimeout       time.Duration
	MaxConcurrentPolls int
	LeaseTTL           time.Duration
	// AnnotateTimeout bounds one annotation call before a commit.
	AnnotateTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.VideoTimeout <= 0 {
		c.VideoTimeout = 180 * time.Second
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = 60 * time.Second
	}
	if c.MaxConcurrentPolls <= 0 {
		c.MaxConcurrentPolls = 16
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 3 * c.PollInterval
	}
	if c.AnnotateTimeout <= 0 {
		c.AnnotateTimeout = 60 * time.Second
	}
	return c
}

// Notifier receives lifecycle events for a canvas.
type Notifier interface {
	Notify(ctx context.Context, canvasID uuid.UUID, event realtime.SSEEvent, data any)
}

// Annotator describes finished media so sibling modules can cite it. Both
// methods return "" for media they cannot read.
type Annotator interface {
	DescribeImage(ctx context.Context, mediaURL string) (string, error)
	TranscribeVideo(ctx context.Context, mediaURL string) (string, error)
}

// Scheduler runs a job to completion somewhere else, e.g. a workflow engine.
// The manager falls back to its own pollers when Schedule fails.
type Scheduler interface {
	Schedule(ctx context.Context, jobID uuid.UUID) error
	Name() string
}

type Deps struct {
	Log       *logger.Logger
	Store     store.VersionStore
	Jobs      repos.MediaJobRepo
	Providers []Provider
	// Optional.
	Notifier  Notifier
	Locker    Locker
	Thumbs    *ThumbnailMaker
	Annotator Annotator
	Scheduler Scheduler
	Clock     func() time.Time
}

// Manager owns every media job from placeholder to terminal version. A job
// row is the durable record; pollers are disposable and rebuilt by Recover.
type Manager struct {
	log       *logger.Logger
	cfg       Config
	store     store.VersionStore
	jobs      repos.MediaJobRepo
	providers map[domain.MediaKind]Provider
	notifier  Notifier
	locker    Locker
	thumbs    *ThumbnailMaker
	annotator Annotator
	now       func() time.Time

	schedMu   sync.RWMutex
	scheduler Scheduler

	sem      *semaphore.Weighted
	flight   singleflight.Group
	inflight atomic.Int64
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if deps.Log == nil || deps.Store == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("media manager: log, store and jobs are required")
	}
	cfg = cfg.withDefaults()
	m := &Manager{
		log:       deps.Log.With("component", "MediaManager"),
		cfg:       cfg,
		store:     deps.Store,
		jobs:      deps.Jobs,
		providers: map[domain.MediaKind]Provider{},
		notifier:  deps.Notifier,
		locker:    deps.Locker,
		thumbs:    deps.Thumbs,
		annotator: deps.Annotator,
		scheduler: deps.Scheduler,
		now:       deps.Clock,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentPolls)),
	}
	if m.now == nil {
		m.now = time.Now
	}
	for _, p := range deps.Providers {
		if p == nil {
			continue
		}
		m.providers[p.Kind()] = p
	}
	m.baseCtx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// SetScheduler swaps the executor. nil restores in-process polling.
func (m *Manager) SetScheduler(s Scheduler) {
	m.schedMu.Lock()
	m.scheduler = s
	m.schedMu.Unlock()
}

func (m *Manager) Supports(kind domain.MediaKind) bool {
	_, ok := m.providers[kind]
	return ok
}

func (m *Manager) timeoutFor(kind domain.MediaKind) time.Duration {
	if kind == domain.MediaImage {
		return m.cfg.ImageTimeout
	}
	return m.cfg.VideoTimeout
}

// Request commits the placeholder version, marks the module generating and
// queues the job. It returns ErrNoProvider before writing anything when the
// kind cannot be served. On any error the caller owns committing the error
// version.
func (m *Manager) Request(ctx context.Context, module *domain.Module, prompt string, req dispatch.MediaRequest) (*domain.ModuleVersion, *domain.MediaJob, error) {
	if module == nil {
		return nil, nil, fmt.Errorf("%w: module required", errs.ErrInvalidArgument)
	}
	if !m.Supports(req.Kind) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoProvider, req.Kind)
	}
	ctx, span := observability.StartSpan(ctx, "media.request",
		attribute.String("module.id", module.ID.String()),
		attribute.String("media.kind", string(req.Kind)),
	)
	defer span.End()

	placeholder := req.Placeholder()
	thumbURL := ""
	if req.Kind == domain.MediaVideo && m.thumbs != nil {
		u, err := m.thumbs.TitleCard(ctx, module.ID, req.Title)
		if err != nil {
			m.log.Warn("title card failed", "module_id", module.ID, "error", err)
		} else {
			thumbURL = u
			placeholder = content.Video{Title: req.Title, ThumbnailURL: u, Pending: true}
		}
	}

	version, err := m.store.CommitVersion(ctx, module.ID, prompt, placeholder, domain.ModuleGenerating)
	if err != nil {
		return nil, nil, err
	}
	now := m.now().UTC().Truncate(time.Microsecond)
	job := &domain.MediaJob{
		ModuleID:     module.ID,
		CanvasID:     module.CanvasID,
		Kind:         req.Kind,
		ModuleType:   req.ModuleType,
		Prompt:       req.Prompt,
		Title:        req.Title,
		Status:       domain.MediaJobQueued,
		ThumbnailURL: thumbURL,
		DeadlineAt:   now.Add(m.timeoutFor(req.Kind)),
		CreatedAt:    now,
	}
	if err := m.jobs.Create(dbctx.Background(ctx), job); err != nil {
		return nil, nil, err
	}
	m.notify(ctx, module.CanvasID, realtime.SSEEventModuleVersionCreated, version)
	m.notify(ctx, module.CanvasID, realtime.SSEEventMediaJobUpdated, job)
	m.schedule(ctx, job.ID)
	return version, job, nil
}

func (m *Manager) schedule(ctx context.Context, jobID uuid.UUID) {
	m.schedMu.RLock()
	s := m.scheduler
	m.schedMu.RUnlock()
	if s != nil {
		err := s.Schedule(ctxutil.Detached(ctx), jobID)
		if err == nil {
			return
		}
		m.log.Warn("media scheduler unavailable; polling in-process", "scheduler", s.Name(), "job_id", jobID, "error", err)
	}
	m.wg.Add(1)
	go m.runLocal(jobID)
}

func (m *Manager) runLocal(jobID uuid.UUID) {
	defer m.wg.Done()
	ctx := m.baseCtx
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)
	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	var lease Lease
	if m.locker != nil {
		l, err := m.locker.Acquire(ctx, leaseName(jobID.String()), m.cfg.LeaseTTL)
		switch {
		case err != nil:
			m.log.Warn("media lease unavailable; polling without it", "job_id", jobID, "error", err)
		case l == nil:
			m.log.Debug("media job polled by another instance", "job_id", jobID)
			return
		default:
			lease = l
		}
	}
	defer func() {
		if lease != nil {
			_ = lease.Release(context.Background())
		}
	}()

	for {
		observability.Current().IncMediaPoll("background")
		done, err := m.Step(ctx, jobID)
		if err != nil {
			m.log.Warn("media step failed", "job_id", jobID, "error", err)
		}
		if done {
			return
		}
		if lease != nil {
			var keep bool
			lease, keep = m.renewLease(ctx, jobID, lease)
			if !keep {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// renewLease extends lease, reacquiring it when it expired under a slow
// step. It reports false only when another process now owns the job.
func (m *Manager) renewLease(ctx context.Context, jobID uuid.UUID, lease Lease) (Lease, bool) {
	ok, err := lease.Renew(ctx)
	if err != nil {
		m.log.Warn("media lease renew failed", "job_id", jobID, "error", err)
		return lease, true
	}
	if ok {
		return lease, true
	}
	l, err := m.locker.Acquire(ctx, leaseName(jobID.String()), m.cfg.LeaseTTL)
	switch {
	case err != nil:
		m.log.Warn("media lease lost; reacquire failed, still polling", "job_id", jobID, "error", err)
		return lease, true
	case l == nil:
		m.log.Info("media lease taken over by another instance", "job_id", jobID)
		return nil, false
	default:
		m.log.Debug("media lease reacquired", "job_id", jobID)
		return l, true
	}
}

// Step advances one job by a single create-or-poll round trip. It reports
// done once the job is terminal (or gone). Concurrent calls for the same job
// share one round trip.
func (m *Manager) Step(ctx context.Context, jobID uuid.UUID) (bool, error) {
	v, err, _ := m.flight.Do(jobID.String(), func() (any, error) {
		return m.step(ctx, jobID)
	})
	done, _ := v.(bool)
	return done, err
}

func (m *Manager) step(ctx context.Context, jobID uuid.UUID) (bool, error) {
	dbc := dbctx.Background(ctx)
	job, err := m.jobs.GetByID(dbc, jobID)
	if errors.Is(err, errs.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if job.Status.Terminal() {
		return true, nil
	}
	if m.now().After(job.DeadlineAt) {
		return true, m.commitFailure(ctx, job, domain.MediaJobTimeout, m.timeoutMessage(job))
	}
	provider, ok := m.providers[job.Kind]
	if !ok {
		return true, m.commitFailure(ctx, job, domain.MediaJobFailed, fmt.Sprintf("no provider for %s", job.Kind))
	}

	callCtx, cancel := context.WithDeadline(ctx, job.DeadlineAt)
	defer cancel()

	if job.ExternalJobID == "" {
		claimed, err := m.jobs.UpdateFieldsIfStatus(dbc, job.ID,
			[]domain.MediaJobStatus{domain.MediaJobQueued},
			map[string]interface{}{"status": domain.MediaJobCreating, "attempts": job.Attempts + 1},
		)
		if err != nil {
			return false, err
		}
		if !claimed {
			return false, nil
		}
		job.Status = domain.MediaJobCreating
		job.Attempts++
		st, err := provider.Create(callCtx, CreateRequest{
			JobID:      job.ID,
			ModuleID:   job.ModuleID,
			ModuleType: job.ModuleType,
			Title:      job.Title,
			Prompt:     job.Prompt,
		})
		if err != nil {
			if m.now().After(job.DeadlineAt) {
				return true, m.commitFailure(ctx, job, domain.MediaJobTimeout, m.timeoutMessage(job))
			}
			return true, m.commitFailure(ctx, job, domain.MediaJobFailed, "Media generation failed: "+err.Error())
		}
		if _, err := m.jobs.UpdateFieldsIfStatus(dbc, job.ID,
			[]domain.MediaJobStatus{domain.MediaJobCreating},
			map[string]interface{}{"status": domain.MediaJobPolling, "external_job_id": st.ExternalID},
		); err != nil {
			return false, err
		}
		job.Status = domain.MediaJobPolling
		job.ExternalJobID = st.ExternalID
		return m.apply(ctx, job, st)
	}

	st, err := provider.Poll(callCtx, job.ExternalJobID)
	if _, uerr := m.jobs.UpdateFieldsIfStatus(dbc, job.ID, domain.ActiveMediaJobStatuses,
		map[string]interface{}{"attempts": job.Attempts + 1},
	); uerr != nil {
		m.log.Debug("media attempt count not updated", "job_id", job.ID, "error", uerr)
	}
	if err != nil {
		return false, err
	}
	return m.apply(ctx, job, st)
}

func (m *Manager) apply(ctx context.Context, job *domain.MediaJob, st JobStatus) (bool, error) {
	switch st.State {
	case StateCompleted:
		if st.URL == "" {
			return true, m.commitFailure(ctx, job, domain.MediaJobFailed, "Media generation finished without a media URL")
		}
		return true, m.commitCompleted(ctx, job, st)
	case StateFailed:
		msg := st.Error
		if msg == "" {
			msg = "provider reported failure"
		}
		return true, m.commitFailure(ctx, job, domain.MediaJobFailed, "Media generation failed: "+msg)
	default:
		return false, nil
	}
}

func (m *Manager) timeoutMessage(job *domain.MediaJob) string {
	return fmt.Sprintf("%s generation timed out after %s; edit the module to try again", job.Kind, m.timeoutFor(job.Kind))
}

// isLatest reports whether job is still the module's newest job. A stale job
// never touches the module.
func (m *Manager) isLatest(ctx context.Context, job *domain.MediaJob) (bool, error) {
	latest, err := m.jobs.LatestForModule(dbctx.Background(ctx), job.ModuleID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.ID == job.ID {
		return true, nil
	}
	now := m.now().UTC()
	ok, err := m.jobs.UpdateFieldsIfStatus(dbctx.Background(ctx), job.ID, domain.ActiveMediaJobStatuses,
		map[string]interface{}{"status": domain.MediaJobSuperseded, "finished_at": &now},
	)
	if err != nil {
		return false, err
	}
	if ok {
		job.Status = domain.MediaJobSuperseded
		observability.Current().IncMediaOutcome(string(job.Kind), string(domain.MediaJobSuperseded))
		m.notify(ctx, job.CanvasID, realtime.SSEEventMediaJobUpdated, job)
	}
	return false, nil
}

// commitCompleted appends the final media version. Repeating it for the same
// job appends an identical version and leaves the module ready.
func (m *Manager) commitCompleted(ctx context.Context, job *domain.MediaJob, st JobStatus) error {
	latest, err := m.isLatest(ctx, job)
	if err != nil || !latest {
		return err
	}
	thumb := st.ThumbnailURL
	if thumb == "" {
		thumb = job.ThumbnailURL
	}
	var payload content.Payload
	if job.Kind == domain.MediaImage {
		alt := job.Title
		if d := m.annotate(ctx, job, st.URL); d != "" {
			alt = job.Title + ". " + d
		}
		payload = content.Image{Title: job.Title, ImageURL: st.URL, Alt: alt, ThumbnailURL: thumb}
	} else {
		payload = content.Video{Title: job.Title, VideoURL: st.URL, ThumbnailURL: thumb, Transcript: m.annotate(ctx, job, st.URL)}
	}
	version, err := m.store.CommitVersion(ctx, job.ModuleID, job.Prompt, payload, domain.ModuleReady)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := m.now().UTC()
	if _, err := m.jobs.UpdateFieldsIfStatus(dbctx.Background(ctx), job.ID,
		append([]domain.MediaJobStatus{domain.MediaJobCompleted}, domain.ActiveMediaJobStatuses...),
		map[string]interface{}{"status": domain.MediaJobCompleted, "result_url": st.URL, "finished_at": &now},
	); err != nil {
		return err
	}
	job.Status = domain.MediaJobCompleted
	job.ResultURL = st.URL
	job.FinishedAt = &now
	observability.Current().IncMediaOutcome(string(job.Kind), string(domain.MediaJobCompleted))
	m.log.Info("media job completed", "job_id", job.ID, "module_id", job.ModuleID, "kind", job.Kind)
	m.notify(ctx, job.CanvasID, realtime.SSEEventModuleVersionCreated, version)
	m.notify(ctx, job.CanvasID, realtime.SSEEventModuleStatusChanged, map[string]any{"module_id": job.ModuleID, "status": domain.ModuleReady})
	m.notify(ctx, job.CanvasID, realtime.SSEEventMediaJobUpdated, job)
	return nil
}

// annotate never fails the commit; media without a description is still
// complete.
func (m *Manager) annotate(ctx context.Context, job *domain.MediaJob, url string) string {
	if m.annotator == nil {
		return ""
	}
	actx, cancel := context.WithTimeout(ctx, m.cfg.AnnotateTimeout)
	defer cancel()
	var (
		out string
		err error
	)
	if job.Kind == domain.MediaImage {
		out, err = m.annotator.DescribeImage(actx, url)
	} else {
		out, err = m.annotator.TranscribeVideo(actx, url)
	}
	if err != nil {
		m.log.Warn("media annotation failed", "job_id", job.ID, "kind", job.Kind, "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}

// commitFailure appends an error version. The placeholder is never left as
// the final state.
func (m *Manager) commitFailure(ctx context.Context, job *domain.MediaJob, status domain.MediaJobStatus, msg string) error {
	latest, err := m.isLatest(ctx, job)
	if err != nil || !latest {
		return err
	}
	reason := content.ReasonFailed
	if status == domain.MediaJobTimeout {
		reason = content.ReasonTimeout
	}
	payload := content.Error{Title: job.Title, Message: msg, Reason: reason, ModuleType: job.ModuleType}
	version, err := m.store.CommitVersion(ctx, job.ModuleID, job.Prompt, payload, domain.ModuleError)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := m.now().UTC()
	if _, err := m.jobs.UpdateFieldsIfStatus(dbctx.Background(ctx), job.ID, domain.ActiveMediaJobStatuses,
		map[string]interface{}{"status": status, "error": msg, "finished_at": &now},
	); err != nil {
		return err
	}
	job.Status = status
	job.Error = msg
	job.FinishedAt = &now
	observability.Current().IncMediaOutcome(string(job.Kind), string(status))
	m.log.Warn("media job ended without media", "job_id", job.ID, "module_id", job.ModuleID, "status", status, "error", msg)
	m.notify(ctx, job.CanvasID, realtime.SSEEventModuleVersionCreated, version)
	m.notify(ctx, job.CanvasID, realtime.SSEEventModuleStatusChanged, map[string]any{"module_id": job.ModuleID, "status": domain.ModuleError})
	m.notify(ctx, job.CanvasID, realtime.SSEEventMediaJobUpdated, job)
	return nil
}

// CheckStatus runs one poll for the module's newest job on behalf of a
// client. It ignores the background lease and never creates a second
// external job while one is being created.
func (m *Manager) CheckStatus(ctx context.Context, moduleID uuid.UUID) (*domain.MediaJob, error) {
	if _, err := m.store.FindModule(ctx, moduleID); err != nil {
		return nil, err
	}
	dbc := dbctx.Background(ctx)
	job, err := m.jobs.LatestForModule(dbc, moduleID)
	if err != nil || job == nil {
		return job, err
	}
	if job.Status.Terminal() {
		return job, nil
	}
	if job.Status == domain.MediaJobCreating && !m.now().After(job.DeadlineAt) {
		return job, nil
	}
	observability.Current().IncMediaPoll("refresh")
	if _, err := m.Step(ctxutil.Detached(ctx), job.ID); err != nil {
		m.log.Warn("media refresh poll failed", "job_id", job.ID, "error", err)
	}
	return m.jobs.GetByID(dbc, job.ID)
}

// Recover reschedules every job a previous process left active. Jobs stuck
// in creating without an external id are re-queued so they can be claimed.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	dbc := dbctx.Background(ctx)
	active, err := m.jobs.ListByStatus(dbc, domain.ActiveMediaJobStatuses)
	if err != nil {
		return 0, err
	}
	for _, job := range active {
		if job.Status == domain.MediaJobCreating && job.ExternalJobID == "" {
			if _, err := m.jobs.UpdateFieldsIfStatus(dbc, job.ID,
				[]domain.MediaJobStatus{domain.MediaJobCreating},
				map[string]interface{}{"status": domain.MediaJobQueued},
			); err != nil {
				return 0, err
			}
		}
		m.schedule(ctx, job.ID)
	}
	if len(active) > 0 {
		m.log.Info("recovered media jobs", "count", len(active))
	}
	return len(active), nil
}

type StatusSnapshot struct {
	Counts   map[domain.MediaJobStatus]int `json:"counts"`
	Active   int                           `json:"active"`
	InFlight int                           `json:"in_flight"`
	Capacity int                           `json:"capacity"`
	Executor string                        `json:"executor"`
}

// Status reports job counts by state and this process's pollers.
func (m *Manager) Status(ctx context.Context) (StatusSnapshot, error) {
	raw, err := m.jobs.CountByStatus(dbctx.Background(ctx))
	if err != nil {
		return StatusSnapshot{}, err
	}
	all := []domain.MediaJobStatus{
		domain.MediaJobQueued, domain.MediaJobCreating, domain.MediaJobPolling,
		domain.MediaJobCompleted, domain.MediaJobFailed, domain.MediaJobTimeout, domain.MediaJobSuperseded,
	}
	snap := StatusSnapshot{
		Counts:   make(map[domain.MediaJobStatus]int, len(all)),
		InFlight: int(m.inflight.Load()),
		Capacity: m.cfg.MaxConcurrentPolls,
		Executor: "local",
	}
	gauge := make(map[string]int, len(all))
	for _, s := range all {
		snap.Counts[s] = raw[s]
		gauge[string(s)] = raw[s]
		if !s.Terminal() {
			snap.Active += raw[s]
		}
	}
	m.schedMu.RLock()
	if m.scheduler != nil {
		snap.Executor = m.scheduler.Name()
	}
	m.schedMu.RUnlock()
	observability.Current().SetMediaJobs(gauge)
	return snap, nil
}

// Shutdown stops local pollers. Jobs stay active in the database and are
// picked up by the next Recover.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) notify(ctx context.Context, canvasID uuid.UUID, event realtime.SSEEvent, data any) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, canvasID, event, data)
}
