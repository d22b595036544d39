package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsCommandFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	logDir := filepath.Join(env.baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := strings.Join([]string{
		"2026-01-01T00:00:00Z INFO workflow-manager: job added job_id=one",
		"2026-01-01T00:00:01Z INFO workflow-manager: job added job_id=two",
		"2026-01-01T00:00:02Z WARN workflow-manager: duration probe failed job_id=one",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(logDir, "subforge.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run(t, "logs", "--job", "one")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "job_id=two") || strings.Count(out, "\n") != 2 {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, _, err = env.run(t, "logs", "--level", "warn", "-n", "1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "duration probe failed")
}
