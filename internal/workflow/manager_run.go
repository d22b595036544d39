package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/services"
	"subforge/internal/stages"
)

// run is one pipeline execution for a job. Its token ties every update it
// makes to this execution.
type run struct {
	m        *Manager
	jobID    string
	token    uint64
	source   string
	fileName string
	baseName string
	settings queue.Settings
	logger   *slog.Logger
}

// Start begins processing an idle job in the background and returns the
// job as it entered processing.
func (m *Manager) Start(ctx context.Context, id string) (*queue.Job, error) {
	return m.launch(ctx, id, true)
}

// Retry re-runs a job that is not processing from scratch in the background.
func (m *Manager) Retry(ctx context.Context, id string) (*queue.Job, error) {
	return m.launch(ctx, id, false)
}

// Run executes a job synchronously and returns its final state. Jobs in any
// status other than processing may be run.
func (m *Manager) Run(ctx context.Context, id string) (*queue.Job, error) {
	r, snapshot, err := m.begin(ctx, id, false)
	if err != nil {
		return nil, err
	}
	m.publish(Event{Type: EventJobUpdated, JobID: id, Job: snapshot})
	m.execute(ctx, r)
	job, ok := m.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (m *Manager) launch(ctx context.Context, id string, requireIdle bool) (*queue.Job, error) {
	r, snapshot, err := m.begin(ctx, id, requireIdle)
	if err != nil {
		return nil, err
	}
	m.publish(Event{Type: EventJobUpdated, JobID: id, Job: snapshot.Clone()})

	runCtx := m.baseCtx
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, requestID)
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(runCtx, r)
	}()
	return snapshot, nil
}

// begin moves the job to processing under a fresh run token.
func (m *Manager) begin(ctx context.Context, id string, requireIdle bool) (*run, *queue.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.jobs[id]
	if !ok {
		return nil, nil, ErrJobNotFound
	}
	if !current.CanRun() {
		return nil, nil, ErrJobBusy
	}
	if requireIdle && current.Status != queue.StatusIdle {
		return nil, nil, ErrJobNotIdle
	}

	m.lastToken++
	next := current.Clone()
	next.ResetForRun(m.lastToken)
	if err := m.store.Save(ctx, next); err != nil {
		return nil, nil, fmt.Errorf("persist run start: %w", err)
	}
	m.jobs[id] = next

	r := &run{
		m:        m,
		jobID:    id,
		token:    next.RunToken,
		source:   next.SourcePath,
		fileName: next.FileName,
		baseName: next.BaseName(),
		settings: next.Settings,
	}
	r.logger = m.logger.With(
		logging.String(logging.FieldJobID, id),
		logging.Uint64(logging.FieldRunToken, r.token),
	)
	return r, next.Clone(), nil
}

// execute runs the selected pipeline and converts any failure, including a
// panic, into the job's error state.
func (m *Manager) execute(ctx context.Context, r *run) {
	ctx = services.WithJobID(ctx, r.jobID)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("source_file", r.source),
		logging.Bool("advanced", r.settings.EnableAdvancedProcessing),
	)

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("pipeline panic: %v", recovered)
			logging.ErrorWithContext(logger, "pipeline panicked", "pipeline_panic",
				logging.Error(err),
				logging.String("stack", string(debug.Stack())),
			)
			r.fail(ctx, err)
		}
	}()

	var err error
	if r.settings.EnableAdvancedProcessing {
		err = r.runAdvanced(ctx)
	} else {
		err = r.runBasic(ctx)
	}
	if err != nil {
		r.fail(ctx, err)
		logging.ErrorWithContext(logger, "pipeline failed", "pipeline_failure",
			logging.Error(err),
			logging.String("error_kind", services.Kind(err)),
			logging.Duration("elapsed", time.Since(start)),
			logging.Alert("job_failure"),
		)
		return
	}
	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Duration("elapsed", time.Since(start)),
	)
}

func (r *run) update(ctx context.Context, mutate func(*queue.Job)) bool {
	_, ok := r.m.update(ctx, r.jobID, r.token, mutate)
	return ok
}

func (r *run) progress(ctx context.Context, label string) {
	r.update(ctx, func(job *queue.Job) {
		job.Progress = label
	})
	logging.WithContext(ctx, r.logger).Debug("progress", logging.String("label", label))
}

func (r *run) fail(ctx context.Context, err error) {
	message := err.Error()
	if isCanceled(err) {
		message = queue.InterruptedReason
	}
	r.update(ctx, func(job *queue.Job) {
		job.Status = queue.StatusError
		job.Error = message
		job.Progress = ""
		for key, state := range job.Stages {
			if state.Status == stages.StatusProcessing {
				job.Stages = job.Stages.Apply(key, stages.Failed(message))
			}
		}
	})
}
