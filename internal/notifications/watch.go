package notifications

import (
	"context"
	"log/slog"

	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/workflow"
)

// Watch sends one notification for every event that finishes a run until
// ctx is done or events closes. Other updates, such as re-applied settings
// on old jobs, are ignored. Failures are only notified when notifyFailures is
// set. Delivery errors are logged and never affect jobs.
func Watch(ctx context.Context, events <-chan workflow.Event, svc Service, notifyFailures bool, logger *slog.Logger) {
	logger = logging.NewComponentLogger(logger, "notifications")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			job := event.Job
			if !event.Finished || job == nil {
				continue
			}

			var err error
			switch job.Status {
			case queue.StatusCompleted:
				err = svc.NotifyJobCompleted(ctx, job)
			case queue.StatusError:
				if !notifyFailures {
					continue
				}
				err = svc.NotifyJobFailed(ctx, job)
			}
			if err != nil {
				logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				)
			}
		}
	}
}
