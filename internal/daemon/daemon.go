package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"subforge/internal/api"
	"subforge/internal/config"
	"subforge/internal/logging"
	"subforge/internal/notifications"
	"subforge/internal/preflight"
	"subforge/internal/queue"
	"subforge/internal/workflow"
)

// ErrAlreadyRunning is returned when another daemon holds the lock file.
var ErrAlreadyRunning = errors.New("another subforge daemon instance is already running")

const shutdownTimeout = 5 * time.Second

// Daemon owns the job manager and HTTP API for one process.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	manager *workflow.Manager
	handler *api.Server
	api     *apiServer
	notify  notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ready   chan struct{}
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithNotifier replaces the notification service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) {
		if svc != nil {
			d.notify = svc
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, manager *workflow.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		ready:    make(chan struct{}),
		notify:   notifications.NewService(cfg),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handler = api.NewServer(manager, api.ServerOptions{
		Defaults:  queue.SettingsFromConfig(cfg),
		UploadDir: cfg.UploadDir(),
		Status:    d.Status,
	}, logger)
	d.api = newAPIServer(cfg.Paths.APIBind, d.handler.Handler(), d.logger)
	return d, nil
}

// Run acquires the instance lock, restores job history, and serves the API
// until ctx is canceled. In-flight runs must derive from ctx (see
// workflow.WithBaseContext) so they are interrupted on shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.running.Store(true)
	defer d.running.Store(false)

	if err := d.restore(ctx); err != nil {
		return err
	}
	d.logPreflight(ctx)

	if err := d.api.listen(); err != nil {
		return err
	}
	close(d.ready)
	d.logger.Info("subforge daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(d.api.serve)
	if notifications.Enabled(d.notify) {
		events, unsubscribe := d.manager.Subscribe()
		defer unsubscribe()
		group.Go(func() error {
			notifications.Watch(groupCtx, events, d.notify, d.cfg.Notifications.NotifyOnFailure, d.logger)
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		d.handler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return d.api.shutdown(shutdownCtx)
	})
	err = group.Wait()

	d.manager.Wait()
	d.logger.Info("subforge daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

// restore marks jobs a previous process left processing as failed and loads
// the job history into the manager.
func (d *Daemon) restore(ctx context.Context) error {
	reset, err := d.store.ResetInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("reset interrupted jobs: %w", err)
	}
	if reset > 0 {
		logging.WarnWithContext(d.logger, "jobs interrupted by previous shutdown", "jobs_interrupted",
			logging.Int64("count", reset),
			logging.String(logging.FieldErrorHint, "retry the affected jobs"),
			logging.String(logging.FieldImpact, "jobs marked as error"),
		)
	}
	if err := d.manager.Load(ctx); err != nil {
		return err
	}
	return nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		impact := "jobs may fail"
		if result.Optional {
			impact = "degraded functionality"
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, impact),
			logging.String(logging.FieldErrorHint, "run `subforge status` for details"),
		)
	}
}

// Ready is closed once the API is listening.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the API listen address once Ready is closed.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status and readiness checks.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	results := preflight.RunAll(ctx, d.cfg)
	checks := make([]api.Check, 0, len(results))
	for _, result := range results {
		checks = append(checks, api.Check{Name: result.Name, OK: result.Passed, Detail: result.Detail})
	}
	return api.StatusResponse{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		ExportDir:    d.cfg.Paths.ExportDir,
		Checks:       checks,
	}
}
