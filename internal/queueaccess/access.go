// Package queueaccess gives the CLI one job-management interface whether a
// daemon is reachable over HTTP or the job store has to be used directly.
package queueaccess

import (
	"context"

	"subforge/internal/api"
	"subforge/internal/queue"
	"subforge/internal/workflow"
)

// Access provides job operations regardless of HTTP or direct store backing.
type Access interface {
	// Remote reports whether a daemon serves the requests.
	Remote() bool
	List(ctx context.Context, statuses []string) ([]api.Job, error)
	Describe(ctx context.Context, id string) (*api.Job, error)
	Add(ctx context.Context, path string, settings *api.Settings, start bool) (api.Job, error)
	// Retry re-runs a job. Over HTTP the run is asynchronous. Locally it
	// blocks until the pipeline finishes.
	Retry(ctx context.Context, id string) (api.Job, error)
	Remove(ctx context.Context, ids []string) ([]string, error)
	ClearFinished(ctx context.Context) ([]string, error)
	ApplySettings(ctx context.Context, settings api.Settings) (int, error)
}

// NewAPIAccess returns an Access backed by a daemon's HTTP API.
func NewAPIAccess(client *api.Client) Access {
	return &apiAccess{client: client}
}

// NewManagerAccess returns an Access backed by an in-process manager.
func NewManagerAccess(manager *workflow.Manager, defaults queue.Settings) Access {
	return &managerAccess{manager: manager, defaults: defaults}
}

type apiAccess struct {
	client *api.Client
}

func (a *apiAccess) Remote() bool { return true }

func (a *apiAccess) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	return a.client.ListJobs(ctx, statuses...)
}

func (a *apiAccess) Describe(ctx context.Context, id string) (*api.Job, error) {
	job, err := a.client.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (a *apiAccess) Add(ctx context.Context, path string, settings *api.Settings, start bool) (api.Job, error) {
	return a.client.AddJob(ctx, api.AddJobRequest{Path: path, Settings: settings, Start: start})
}

func (a *apiAccess) Retry(ctx context.Context, id string) (api.Job, error) {
	return a.client.RetryJob(ctx, id)
}

func (a *apiAccess) Remove(ctx context.Context, ids []string) ([]string, error) {
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := a.client.RemoveJob(ctx, id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

func (a *apiAccess) ClearFinished(ctx context.Context) ([]string, error) {
	return a.client.ClearFinished(ctx)
}

func (a *apiAccess) ApplySettings(ctx context.Context, settings api.Settings) (int, error) {
	return a.client.ApplySettings(ctx, settings)
}

type managerAccess struct {
	manager  *workflow.Manager
	defaults queue.Settings
}

func (a *managerAccess) Remote() bool { return false }

func (a *managerAccess) List(_ context.Context, statuses []string) ([]api.Job, error) {
	filter := make(map[queue.Status]struct{}, len(statuses))
	for _, value := range statuses {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, unknownStatus(value)
		}
		filter[status] = struct{}{}
	}
	jobs := a.manager.List()
	out := make([]api.Job, 0, len(jobs))
	for _, job := range jobs {
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, api.FromJob(job, false))
	}
	return out, nil
}

func (a *managerAccess) Describe(_ context.Context, id string) (*api.Job, error) {
	job, ok := a.manager.Get(id)
	if !ok {
		return nil, workflow.ErrJobNotFound
	}
	dto := api.FromJob(job, true)
	return &dto, nil
}

func (a *managerAccess) Add(ctx context.Context, path string, settings *api.Settings, start bool) (api.Job, error) {
	snapshot := a.defaults
	if settings != nil {
		snapshot = settings.ToSettings()
	}
	if err := snapshot.Validate(); err != nil {
		return api.Job{}, err
	}
	job, err := a.manager.Add(ctx, path, snapshot)
	if err != nil {
		return api.Job{}, err
	}
	if start {
		if job, err = a.manager.Run(ctx, job.ID); err != nil {
			return api.Job{}, err
		}
	}
	return api.FromJob(job, false), nil
}

func (a *managerAccess) Retry(ctx context.Context, id string) (api.Job, error) {
	job, err := a.manager.Run(ctx, id)
	if err != nil {
		return api.Job{}, err
	}
	return api.FromJob(job, false), nil
}

func (a *managerAccess) Remove(ctx context.Context, ids []string) ([]string, error) {
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := a.manager.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

func (a *managerAccess) ClearFinished(ctx context.Context) ([]string, error) {
	return a.manager.ClearFinished(ctx)
}

func (a *managerAccess) ApplySettings(ctx context.Context, settings api.Settings) (int, error) {
	snapshot := settings.ToSettings()
	if err := snapshot.Validate(); err != nil {
		return 0, err
	}
	return a.manager.ApplySettings(ctx, snapshot)
}
