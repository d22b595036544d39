package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"subforge/internal/config"
	"subforge/internal/deps"
	"subforge/internal/services/gemini"
)

// CheckAPIKey reports whether a Gemini API key is configured. The key itself
// is never included in the detail.
func CheckAPIKey(cfg *config.Config) Result {
	const name = "Gemini API key"
	if !cfg.HasAPIKey() {
		return Result{Name: name, Detail: fmt.Sprintf("missing (set gemini.api_key, %s, or run `subforge config set-key`)", config.GeminiAPIKeyEnv)}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckGemini verifies that the Gemini API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckGemini(ctx context.Context, cfg *config.Config, opts ...gemini.Option) Result {
	const name = "Gemini API"
	if !cfg.HasAPIKey() {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := gemini.NewClient(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		TimeoutSeconds: 30,
	}, append([]gemini.Option{gemini.WithRetryMaxAttempts(1)}, opts...)...)

	info, err := client.HealthCheck(checkCtx, cfg.Gemini.Model)
	if err != nil {
		return Result{Name: name, Detail: summarizeGeminiError(err)}
	}
	detail := "API reachable"
	if info.DisplayName != "" {
		detail = fmt.Sprintf("API reachable (%s)", info.DisplayName)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that path is a regular file the process can read.
func CheckFileReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the external executables for the given config.
// ffprobe is optional since the duration probe is best-effort.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Measures audio duration for transcription prompts",
			Optional:    true,
		},
	})
}

// summarizeGeminiError produces a human-readable summary for health check failures.
func summarizeGeminiError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (Gemini API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (Gemini API unreachable)"
	}
	switch gemini.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return "authentication failed (invalid API key)"
	case http.StatusNotFound:
		return "configured model not found"
	}
	return err.Error()
}
