// Package daemonrun assembles the daemon process: logger, job store, Gemini
// service, exporter, workflow manager, and HTTP API.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"subforge/internal/config"
	"subforge/internal/daemon"
	"subforge/internal/export"
	"subforge/internal/logging"
	"subforge/internal/media/ffprobe"
	"subforge/internal/queue"
	"subforge/internal/services/gemini"
	"subforge/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the subforge daemon and blocks until SIGINT/SIGTERM or cmdCtx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", cfg.LogFilePath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	manager := NewManager(signalCtx, cfg, store, logger)
	d, err := daemon.New(cfg, store, manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the API bind address and data directory"),
		)
		return err
	}
	return nil
}

// NewManager wires the Gemini service, exporter, and duration probe into a
// workflow manager whose asynchronous runs derive from ctx.
func NewManager(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...workflow.Option) *workflow.Manager {
	service := gemini.NewService(cfg, logger)
	exporter := export.New(cfg.Paths.ExportDir, logger)
	base := []workflow.Option{
		workflow.WithBaseContext(ctx),
		workflow.WithDurationProber(ffprobe.Prober{Binary: cfg.FFprobeBinary()}),
	}
	return workflow.NewManager(cfg, store, service, workflow.NewStorage(service, exporter), logger, append(base, opts...)...)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffprobeBinary := cfg.FFprobeBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("gemini_key_present", cfg.HasAPIKey()),
		logging.String("gemini_model", cfg.Gemini.Model),
		logging.String("gemini_initial_model", cfg.Gemini.InitialModel),
		logging.String("gemini_analysis_model", cfg.Gemini.AnalysisModel),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobeBinary)),
		logging.String("ffprobe_binary", ffprobeBinary),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Int("pid", os.Getpid()),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
