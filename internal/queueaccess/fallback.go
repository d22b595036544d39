package queueaccess

import (
	"context"
	"fmt"

	"subforge/internal/api"
	"subforge/internal/queue"
	"subforge/internal/services"
	"subforge/internal/workflow"
)

// Session represents a job access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// LocalOpener opens the job store and builds a manager over it. The returned
// function releases both.
type LocalOpener func(ctx context.Context) (*workflow.Manager, func() error, error)

// OpenWithFallback uses the daemon's HTTP API when it answers a status probe
// and falls back to direct store access otherwise.
func OpenWithFallback(ctx context.Context, client *api.Client, openLocal LocalOpener, defaults queue.Settings) (Session, error) {
	if client != nil {
		_, err := client.Status(ctx)
		if err == nil {
			return Session{Access: NewAPIAccess(client)}, nil
		}
		if !api.IsUnavailable(err) {
			return Session{}, fmt.Errorf("daemon status: %w", err)
		}
	}

	if openLocal == nil {
		return Session{}, fmt.Errorf("open job store: no store opener configured")
	}
	manager, closeFn, err := openLocal(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("open job store: %w", err)
	}
	if err := manager.Load(ctx); err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return Session{}, err
	}
	return Session{
		Access: NewManagerAccess(manager, defaults),
		close:  closeFn,
	}, nil
}

func unknownStatus(value string) error {
	return services.Wrap(services.ErrValidation, "queueaccess", "list", fmt.Sprintf("unknown status %q", value), nil)
}
