package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fakeSRT = "1\n00:00:01,000 --> 00:00:03,000\nHello there\n\n2\n00:00:04,000 --> 00:00:06,000\nGeneral remarks\n"

type cliTestEnv struct {
	baseDir    string
	configPath string
	dataDir    string
	exportDir  string
	gemini     *httptest.Server
}

// setupCLITestEnv writes a config whose API bind refuses connections, so job
// commands fall back to the local store unless --api is given.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("GEMINI_API_KEY", "")

	gemini := httptest.NewServer(http.HandlerFunc(fakeGemini(t)))
	t.Cleanup(gemini.Close)

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(home, ".config", "subforge", "config.toml"),
		dataDir:    filepath.Join(base, "data"),
		exportDir:  filepath.Join(base, "exports"),
		gemini:     gemini,
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
export_dir = %q
log_dir = %q
api_bind = "127.0.0.1:1"

[gemini]
api_key = "test-key"
base_url = %q
requests_per_minute = 6000
file_poll_interval_ms = 5

[media]
ffprobe_binary = %q

[logging]
level = "error"
`, env.dataDir, env.exportDir, filepath.Join(base, "logs"), gemini.URL, filepath.Join(base, "missing-ffprobe"))
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func fakeGemini(t *testing.T) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var payload any
		switch {
		case r.URL.Path == "/upload/v1beta/files":
			payload = map[string]any{"file": map[string]any{
				"name": "files/audio1", "uri": "https://files/audio1", "mimeType": "audio/mpeg", "state": "ACTIVE",
			}}
		case strings.HasPrefix(r.URL.Path, "/v1beta/files/"):
			payload = map[string]any{"name": "files/audio1", "uri": "https://files/audio1", "state": "ACTIVE"}
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			payload = map[string]any{"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": "```srt\n" + fakeSRT + "```"}}},
				"finishReason": "STOP",
			}}}
		case strings.HasPrefix(r.URL.Path, "/v1beta/models/"):
			payload = map[string]any{"name": "models/gemini-2.5-pro", "displayName": "Gemini 2.5 Pro"}
		default:
			t.Errorf("unexpected gemini request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...), "")
}

func runCLI(t *testing.T, args []string, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("ID3 fake audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
