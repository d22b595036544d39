package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subforge/internal/api"
	"subforge/internal/config"
	"subforge/internal/daemon"
	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/testsupport"
	"subforge/internal/workflow"
)

type runningDaemon struct {
	daemon *daemon.Daemon
	client *api.Client
	cancel context.CancelFunc
	done   chan error
}

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *daemon.Daemon {
	t.Helper()
	manager := workflow.NewManager(cfg, store, nil, nil, logging.NewNop())
	d, err := daemon.New(cfg, store, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func startDaemon(t *testing.T, d *daemon.Daemon, cfg *config.Config) *runningDaemon {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon did not become ready")
	}
	rd := &runningDaemon{
		daemon: d,
		client: api.NewClient("http://"+d.Addr()),
		cancel: cancel,
		done:   done,
	}
	t.Cleanup(func() { rd.stop(t) })
	return rd
}

func (rd *runningDaemon) stop(t *testing.T) {
	t.Helper()
	if rd.cancel == nil {
		return
	}
	rd.cancel()
	rd.cancel = nil
	select {
	case err := <-rd.done:
		if err != nil {
			t.Fatalf("daemon run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemonServesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rd := startDaemon(t, newDaemon(t, cfg, store), cfg)

	status, err := rd.client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() || status.QueueDBPath != cfg.QueueDBPath() {
		t.Fatalf("unexpected paths %+v", status)
	}
	if len(status.Checks) == 0 {
		t.Fatal("expected preflight checks in status")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	startDaemon(t, newDaemon(t, cfg, store), cfg)

	second := newDaemon(t, cfg, store)
	err := second.Run(context.Background())
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStartupMarksInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stuck := testsupport.NewJob(t, store, filepath.Join(t.TempDir(), "a.mp3"), queue.StatusProcessing)
	idle := testsupport.NewJob(t, store, filepath.Join(t.TempDir(), "b.mp3"), queue.StatusIdle)

	rd := startDaemon(t, newDaemon(t, cfg, store), cfg)

	job, err := rd.client.GetJob(context.Background(), stuck.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != string(queue.StatusError) || job.Error != queue.InterruptedReason {
		t.Fatalf("expected interrupted job, got %+v", job)
	}
	job, err = rd.client.GetJob(context.Background(), idle.ID)
	if err != nil {
		t.Fatalf("GetJob idle: %v", err)
	}
	if job.Status != string(queue.StatusIdle) {
		t.Fatalf("idle job changed: %+v", job)
	}
}

func TestStopReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rd := startDaemon(t, newDaemon(t, cfg, store), cfg)
	rd.stop(t)

	startDaemon(t, newDaemon(t, cfg, store), cfg)
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

type countingNotifier struct {
	completed chan string
}

func (c *countingNotifier) NotifyJobCompleted(_ context.Context, job *queue.Job) error {
	c.completed <- job.ID
	return nil
}

func (c *countingNotifier) NotifyJobFailed(context.Context, *queue.Job) error { return nil }

func (c *countingNotifier) TestNotification(context.Context) error { return nil }

func TestDaemonNotifiesFinishedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	audio := filepath.Join(testsupport.BaseDir(cfg), "talk.mp3")
	testsupport.WriteFile(t, audio, 32)

	manager := workflow.NewManager(cfg, store, stubTranscriber{}, stubStorage{}, logging.NewNop())
	notifier := &countingNotifier{completed: make(chan string, 1)}
	d, err := daemon.New(cfg, store, manager, logging.NewNop(), daemon.WithNotifier(notifier))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	rd := startDaemon(t, d, cfg)

	job, err := rd.client.AddJob(context.Background(), api.AddJobRequest{Path: audio, Start: true})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	select {
	case id := <-notifier.completed:
		if id != job.ID {
			t.Fatalf("notified %s, want %s", id, job.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no completion notification")
	}
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, workflow.FileRef, string, string) (string, error) {
	return "1\n00:00:01,000 --> 00:00:02,000\nHi\n", nil
}

func (stubTranscriber) AnalyzeTopic(context.Context, string) (string, error) { return "", nil }

func (stubTranscriber) CreateDictionary(context.Context, string) (string, error) { return "", nil }

func (stubTranscriber) Enhance(context.Context, workflow.EnhanceRequest) (string, error) {
	return "", nil
}

type stubStorage struct{}

func (stubStorage) StageFile(_ context.Context, _ []byte, name string) (workflow.FileRef, error) {
	return workflow.FileRef{Name: "files/" + name}, nil
}

func (stubStorage) ExportText(context.Context, string, string) (string, error) { return "", nil }
