package preflight

import (
	"context"
	"fmt"
	"time"

	"subforge/internal/api"
	"subforge/internal/config"
)

// ProbeDaemon reports whether a daemon answers on the configured API bind.
// A daemon that is not running is not a failure.
func ProbeDaemon(ctx context.Context, cfg *config.Config) Result {
	const name = "Daemon"
	if cfg == nil {
		return Result{Name: name, Optional: true, Detail: "Unknown"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client := api.NewClient(api.BaseURLFromBind(cfg.Paths.APIBind))
	status, err := client.Status(probeCtx)
	if err != nil {
		if api.IsUnavailable(err) {
			return Result{Name: name, Optional: true, Detail: "not running"}
		}
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("unhealthy (%v)", err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("running (pid %d, %s)", status.PID, cfg.Paths.APIBind)}
}
