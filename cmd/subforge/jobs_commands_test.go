package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"subforge/internal/api"
	"subforge/internal/config"
	"subforge/internal/daemonrun"
	"subforge/internal/logging"
	"subforge/internal/queue"
)

func TestJobsLocalLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	audio := writeAudio(t, env.baseDir, "episode.mp3")

	out, _, err := env.run(t, "jobs", "add", audio, "--max-chars", "20")
	if err != nil {
		t.Fatalf("jobs add: %v", err)
	}
	requireContains(t, out, "episode.mp3, idle")
	id := strings.Fields(strings.TrimPrefix(out, "Added job "))[0]

	out, _, err = env.run(t, "jobs", "list", "--json")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	var listed api.JobListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(listed.Jobs) != 1 || listed.Jobs[0].ID != id || listed.Jobs[0].Settings.MaxCharsPerSubtitle != 20 {
		t.Fatalf("unexpected jobs %+v", listed.Jobs)
	}

	out, _, err = env.run(t, "jobs", "retry", id)
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	requireContains(t, out, "finished: completed")

	out, _, err = env.run(t, "jobs", "show", id)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "2 records")

	out, _, err = env.run(t, "jobs", "show", id, "--srt")
	if err != nil {
		t.Fatalf("jobs show --srt: %v", err)
	}
	requireContains(t, out, "00:00:04,000 --> 00:00:06,000")

	out, _, err = env.run(t, "jobs", "clear")
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 finished jobs")

	out, _, err = env.run(t, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "No jobs")
}

func TestJobsApplySettingsAndRemoveLocally(t *testing.T) {
	env := setupCLITestEnv(t)
	first, _, err := env.run(t, "jobs", "add", writeAudio(t, env.baseDir, "a.mp3"))
	if err != nil {
		t.Fatalf("jobs add: %v", err)
	}
	if _, _, err := env.run(t, "jobs", "add", writeAudio(t, env.baseDir, "b.mp3")); err != nil {
		t.Fatalf("jobs add: %v", err)
	}

	out, _, err := env.run(t, "jobs", "apply-settings", "--speakers", "--max-chars", "16")
	if err != nil {
		t.Fatalf("apply-settings: %v", err)
	}
	requireContains(t, out, "Updated settings on 2 jobs")

	id := strings.Fields(strings.TrimPrefix(first, "Added job "))[0]
	out, _, err = env.run(t, "jobs", "show", id, "--json")
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	var shown api.JobResponse
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if !shown.Job.Settings.EnableSpeakerDetection || shown.Job.Settings.MaxCharsPerSubtitle != 16 {
		t.Fatalf("settings not applied: %+v", shown.Job.Settings)
	}

	out, _, err = env.run(t, "jobs", "remove", id, "missing-id")
	if err == nil {
		t.Fatal("expected error for missing id")
	}
	requireContains(t, out, "Removed job "+id)
	requireContains(t, err.Error(), "missing-id")
}

func TestJobsUseDaemonWhenReachable(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager := daemonrun.NewManager(context.Background(), cfg, store, logging.NewNop())
	server := api.NewServer(manager, api.ServerOptions{
		Defaults:  queue.SettingsFromConfig(cfg),
		UploadDir: cfg.UploadDir(),
	}, logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		server.Close()
		ts.Close()
		manager.Wait()
	})

	out, _, err := env.run(t, "--api", ts.URL, "jobs", "add", writeAudio(t, env.baseDir, "remote.mp3"), "--upload")
	if err != nil {
		t.Fatalf("jobs add --upload: %v", err)
	}
	requireContains(t, out, "remote.mp3, idle")

	if got := manager.List(); len(got) != 1 || !strings.HasPrefix(got[0].SourcePath, cfg.UploadDir()) {
		t.Fatalf("daemon jobs = %+v", got)
	}

	out, _, err = env.run(t, "--api", ts.URL, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "remote.mp3")
}

func TestJobsUploadRequiresDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := env.run(t, "jobs", "add", writeAudio(t, env.baseDir, "x.mp3"), "--upload")
	if err == nil || !strings.Contains(err.Error(), "running daemon") {
		t.Fatalf("expected daemon error, got %v", err)
	}
}

func TestJobsShowUnknownID(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := env.run(t, "jobs", "show", "nope"); err == nil {
		t.Fatal("expected not found error")
	}
}
