package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigSetAndDeleteKey(t *testing.T) {
	env := setupCLITestEnv(t)
	envPath := filepath.Join(filepath.Dir(env.configPath), ".env")

	out, _, err := runCLI(t, []string{"--config", env.configPath, "config", "set-key"}, "  from-stdin  \n")
	if err != nil {
		t.Fatalf("set-key: %v", err)
	}
	requireContains(t, out, envPath)
	values, err := godotenv.Read(envPath)
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if values["GEMINI_API_KEY"] != "from-stdin" {
		t.Fatalf("stored key = %q", values["GEMINI_API_KEY"])
	}

	if _, _, err := env.run(t, "config", "set-key", "from-arg"); err != nil {
		t.Fatalf("set-key arg: %v", err)
	}
	values, _ = godotenv.Read(envPath)
	if values["GEMINI_API_KEY"] != "from-arg" {
		t.Fatalf("stored key = %q", values["GEMINI_API_KEY"])
	}

	if _, _, err := env.run(t, "config", "delete-key"); err != nil {
		t.Fatalf("delete-key: %v", err)
	}
	data, _ := os.ReadFile(envPath)
	if strings.Contains(string(data), "GEMINI_API_KEY") {
		t.Fatalf("key still present: %s", data)
	}
}

func TestConfigSetKeyRejectsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"--config", env.configPath, "config", "set-key"}, "\n"); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestConfigTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := env.run(t, "config", "test-notify"); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}

	var title string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
	}))
	defer ntfy.Close()
	data, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	withTopic := string(data) + "\n[notifications]\nntfy_topic = \"" + ntfy.URL + "/topic\"\n"
	if err := os.WriteFile(env.configPath, []byte(withTopic), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run(t, "config", "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Sent test notification")
	if title != "subforge - Test" {
		t.Fatalf("title = %q", title)
	}
}
