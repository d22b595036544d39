package queueaccess_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"subforge/internal/api"
	"subforge/internal/config"
	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/queueaccess"
	"subforge/internal/services"
	"subforge/internal/testsupport"
	"subforge/internal/workflow"
)

const srt = "1\n00:00:01,000 --> 00:00:02,000\nHi\n"

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, workflow.FileRef, string, string) (string, error) {
	return srt, nil
}

func (stubTranscriber) AnalyzeTopic(context.Context, string) (string, error) {
	return "MAIN_TOPIC: tests", nil
}

func (stubTranscriber) CreateDictionary(context.Context, string) (string, error) {
	return "term,reading,category,notes\n", nil
}

func (stubTranscriber) Enhance(context.Context, workflow.EnhanceRequest) (string, error) {
	return srt, nil
}

type stubStorage struct{}

func (stubStorage) StageFile(_ context.Context, _ []byte, name string) (workflow.FileRef, error) {
	return workflow.FileRef{Name: "files/" + name, MimeType: "audio/mpeg"}, nil
}

func (stubStorage) ExportText(_ context.Context, _ string, name string) (string, error) {
	return filepath.Join("/exports", name), nil
}

func newManager(t *testing.T, cfg *config.Config) (*workflow.Manager, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, stubTranscriber{}, stubStorage{}, logging.NewNop())
	return manager, store
}

func localOpener(manager *workflow.Manager) queueaccess.LocalOpener {
	return func(context.Context) (*workflow.Manager, func() error, error) {
		return manager, nil, nil
	}
}

func closedServerClient(t *testing.T) *api.Client {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	return api.NewClient(url)
}

func TestOpenWithFallbackUsesLocalStoreWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newManager(t, cfg)
	ctx := context.Background()

	session, err := queueaccess.OpenWithFallback(ctx, closedServerClient(t), localOpener(manager), queue.SettingsFromConfig(cfg))
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if session.Access.Remote() {
		t.Fatal("expected local access")
	}

	audio := filepath.Join(testsupport.BaseDir(cfg), "talk.mp3")
	testsupport.WriteFile(t, audio, 128)
	job, err := session.Access.Add(ctx, audio, nil, false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if job.Status != string(queue.StatusIdle) {
		t.Fatalf("status = %s", job.Status)
	}

	done, err := session.Access.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if done.Status != string(queue.StatusCompleted) {
		t.Fatalf("local retry should run to completion, got %s (%s)", done.Status, done.Error)
	}

	described, err := session.Access.Describe(ctx, job.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(described.Subtitles) != 1 {
		t.Fatalf("subtitles = %+v", described.Subtitles)
	}

	completed, err := session.Access.List(ctx, []string{"completed"})
	if err != nil || len(completed) != 1 {
		t.Fatalf("List completed = %v, %v", completed, err)
	}
	cleared, err := session.Access.ClearFinished(ctx)
	if err != nil || len(cleared) != 1 || cleared[0] != job.ID {
		t.Fatalf("ClearFinished = %v, %v", cleared, err)
	}
}

func TestOpenWithFallbackPrefersDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newManager(t, cfg)
	server := api.NewServer(manager, api.ServerOptions{Defaults: queue.SettingsFromConfig(cfg)}, logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()
	defer server.Close()

	opened := false
	opener := func(context.Context) (*workflow.Manager, func() error, error) {
		opened = true
		return manager, nil, nil
	}
	session, err := queueaccess.OpenWithFallback(context.Background(), api.NewClient(ts.URL), opener, queue.Settings{})
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	if !session.Access.Remote() || opened {
		t.Fatalf("expected remote access without opening the store")
	}

	audio := filepath.Join(testsupport.BaseDir(cfg), "talk.mp3")
	testsupport.WriteFile(t, audio, 64)
	job, err := session.Access.Add(context.Background(), audio, nil, false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	removed, err := session.Access.Remove(context.Background(), []string{job.ID})
	if err != nil || len(removed) != 1 {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if _, err := session.Access.Describe(context.Background(), job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found over HTTP, got %v", err)
	}
}

func TestOpenWithFallbackSurfacesDaemonErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"job store unavailable"}`))
	}))
	defer ts.Close()

	opener := func(context.Context) (*workflow.Manager, func() error, error) {
		t.Fatal("store should not be opened when the daemon answers")
		return nil, nil, nil
	}
	if _, err := queueaccess.OpenWithFallback(context.Background(), api.NewClient(ts.URL), opener, queue.Settings{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalAccessValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newManager(t, cfg)
	access := queueaccess.NewManagerAccess(manager, queue.SettingsFromConfig(cfg))
	ctx := context.Background()

	if _, err := access.List(ctx, []string{"bogus"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := access.ApplySettings(ctx, api.Settings{MaxCharsPerSubtitle: 0}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := access.Describe(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := access.Remove(ctx, []string{"missing"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
