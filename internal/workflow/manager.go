package workflow

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"subforge/internal/config"
	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/services"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = fmt.Errorf("job %w", services.ErrNotFound)
	// ErrJobBusy is returned when an operation needs a job that is not processing.
	ErrJobBusy = fmt.Errorf("%w: job is processing", services.ErrValidation)
	// ErrJobNotIdle is returned when Start is used on a job that already ran.
	ErrJobNotIdle = fmt.Errorf("%w: job already ran; use retry", services.ErrValidation)
)

// Models names the Gemini models used for file transcription.
type Models struct {
	// Transcription is used by the basic pipeline.
	Transcription string
	// Initial is the low-cost model for the advanced initial transcript.
	Initial string
}

// Manager owns the active job set and runs pipelines for it.
type Manager struct {
	store       *queue.Store
	transcriber Transcriber
	storage     Storage
	prober      DurationProber
	models      Models
	logger      *slog.Logger

	baseCtx context.Context

	mu        sync.Mutex
	jobs      map[string]*queue.Job
	lastToken uint64

	wg     sync.WaitGroup
	events broker
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithDurationProber enables the audio duration probe.
func WithDurationProber(prober DurationProber) Option {
	return func(m *Manager) {
		m.prober = prober
	}
}

// WithModels overrides the models taken from configuration.
func WithModels(models Models) Option {
	return func(m *Manager) {
		m.models = models
	}
}

// WithBaseContext sets the context asynchronous runs derive from. Canceling
// it interrupts in-flight runs.
func WithBaseContext(ctx context.Context) Option {
	return func(m *Manager) {
		if ctx != nil {
			m.baseCtx = ctx
		}
	}
}

// NewManager constructs a manager. Call Load to pick up persisted jobs.
func NewManager(cfg *config.Config, store *queue.Store, transcriber Transcriber, storage Storage, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		transcriber: transcriber,
		storage:     storage,
		logger:      logging.NewComponentLogger(logger, "workflow-manager"),
		baseCtx:     context.Background(),
		jobs:        make(map[string]*queue.Job),
	}
	if cfg != nil {
		m.models = Models{Transcription: cfg.Gemini.Model, Initial: cfg.Gemini.InitialModel}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the active set with the jobs persisted in the store.
func (m *Manager) Load(ctx context.Context) error {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]*queue.Job, len(jobs))
	for _, job := range jobs {
		m.jobs[job.ID] = job
		m.lastToken = max(m.lastToken, job.RunToken)
	}
	return nil
}

// Get returns a copy of the job with id.
func (m *Manager) Get(id string) (*queue.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns copies of all jobs, oldest first.
func (m *Manager) List() []*queue.Job {
	m.mu.Lock()
	jobs := make([]*queue.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Clone())
	}
	m.mu.Unlock()
	slices.SortFunc(jobs, func(a, b *queue.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs
}

// Add accepts an audio file as a new idle job with a settings snapshot.
func (m *Manager) Add(ctx context.Context, sourcePath string, settings queue.Settings) (*queue.Job, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "add", "source path required", nil)
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "add", "source file unavailable", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "workflow", "add", sourcePath+" is a directory", nil)
	}

	job := queue.NewJob(sourcePath, settings)
	m.mu.Lock()
	if err := m.store.Save(ctx, job); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.jobs[job.ID] = job
	snapshot := job.Clone()
	m.mu.Unlock()

	m.logger.Info("job added",
		logging.String(logging.FieldEventType, "job_added"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source_file", sourcePath),
		logging.Bool("advanced", settings.EnableAdvancedProcessing),
	)
	m.publish(Event{Type: EventJobUpdated, JobID: job.ID, Job: snapshot.Clone()})
	return snapshot, nil
}

// Delete removes a job. A run still in flight for it is detached and its
// later updates are discarded.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	if _, err := m.store.Remove(ctx, id); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.jobs, id)
	m.mu.Unlock()

	m.logger.Info("job removed",
		logging.String(logging.FieldEventType, "job_removed"),
		logging.String(logging.FieldJobID, id),
		logging.String("status", string(job.Status)),
	)
	m.publish(Event{Type: EventJobRemoved, JobID: id})
	return nil
}

// ClearFinished removes every completed or failed job and returns their ids.
func (m *Manager) ClearFinished(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	var removed []string
	for id, job := range m.jobs {
		if !job.IsFinished() {
			continue
		}
		if _, err := m.store.Remove(ctx, id); err != nil {
			m.mu.Unlock()
			return removed, err
		}
		delete(m.jobs, id)
		removed = append(removed, id)
	}
	m.mu.Unlock()

	slices.Sort(removed)
	for _, id := range removed {
		m.publish(Event{Type: EventJobRemoved, JobID: id})
	}
	if len(removed) > 0 {
		m.logger.Info("finished jobs cleared",
			logging.String(logging.FieldEventType, "jobs_cleared"),
			logging.Int("count", len(removed)),
		)
	}
	return removed, nil
}

// ApplySettings re-snapshots settings onto every job that is not processing
// and returns how many jobs changed.
func (m *Manager) ApplySettings(ctx context.Context, settings queue.Settings) (int, error) {
	m.mu.Lock()
	var updated []*queue.Job
	for id, job := range m.jobs {
		if job.Status == queue.StatusProcessing || job.Settings == settings {
			continue
		}
		next := job.Clone()
		next.Settings = settings
		if err := m.store.Save(ctx, next); err != nil {
			m.mu.Unlock()
			return len(updated), err
		}
		m.jobs[id] = next
		updated = append(updated, next.Clone())
	}
	m.mu.Unlock()

	for _, job := range updated {
		m.publish(Event{Type: EventJobUpdated, JobID: job.ID, Job: job})
	}
	m.logger.Info("settings applied",
		logging.String(logging.FieldEventType, "settings_applied"),
		logging.Int("jobs", len(updated)),
	)
	return len(updated), nil
}

// Wait blocks until every asynchronous run has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// update applies mutate to the job when token is still its current run
// token. Stale or removed runs are ignored and reported as false.
func (m *Manager) update(ctx context.Context, id string, token uint64, mutate func(*queue.Job)) (*queue.Job, bool) {
	m.mu.Lock()
	current, ok := m.jobs[id]
	if !ok || current.RunToken != token {
		m.mu.Unlock()
		m.logger.Debug("discarding stale job update",
			logging.String(logging.FieldJobID, id),
			logging.Uint64(logging.FieldRunToken, token),
		)
		return nil, false
	}
	next := current.Clone()
	mutate(next)
	finished := current.Status == queue.StatusProcessing && next.IsFinished()
	if err := m.store.Save(context.WithoutCancel(ctx), next); err != nil {
		logging.ErrorWithContext(m.logger, "failed to persist job update", "job_persist_failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory is writable"),
		)
	}
	m.jobs[id] = next
	snapshot := next.Clone()
	m.mu.Unlock()

	m.publish(Event{Type: EventJobUpdated, JobID: id, Job: snapshot.Clone(), Finished: finished})
	return snapshot, true
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
