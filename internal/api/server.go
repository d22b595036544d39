package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/services"
	"subforge/internal/workflow"
)

// defaultMaxUploadBytes bounds multipart uploads when no limit is configured.
const defaultMaxUploadBytes = 2 << 30

// JobManager is the subset of workflow.Manager the server drives.
type JobManager interface {
	List() []*queue.Job
	Get(id string) (*queue.Job, bool)
	Add(ctx context.Context, sourcePath string, settings queue.Settings) (*queue.Job, error)
	Start(ctx context.Context, id string) (*queue.Job, error)
	Retry(ctx context.Context, id string) (*queue.Job, error)
	Delete(ctx context.Context, id string) error
	ClearFinished(ctx context.Context) ([]string, error)
	ApplySettings(ctx context.Context, settings queue.Settings) (int, error)
	Subscribe() (<-chan workflow.Event, func())
}

// StatusFunc supplies daemon details for GET /api/status. Job counts are
// filled in by the server.
type StatusFunc func(ctx context.Context) StatusResponse

// ServerOptions configures a Server.
type ServerOptions struct {
	// Defaults are the settings given to jobs added without explicit settings.
	Defaults queue.Settings
	// UploadDir receives audio uploaded as multipart form data.
	UploadDir string
	// MaxUploadBytes caps a multipart upload. Zero uses a 2 GiB limit.
	MaxUploadBytes int64
	// Status reports daemon details. Optional.
	Status StatusFunc
}

// Server routes HTTP requests to a JobManager.
type Server struct {
	manager JobManager
	opts    ServerOptions
	logger  *slog.Logger
	router  *mux.Router

	upgrader websocket.Upgrader

	mu       sync.Mutex
	defaults queue.Settings

	closeOnce sync.Once
	done      chan struct{}
}

// NewServer builds the router for manager.
func NewServer(manager JobManager, opts ServerOptions, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		manager:  manager,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		defaults: opts.Defaults,
		done:     make(chan struct{}),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.requestIDMiddleware)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleApplySettings).Methods(http.MethodPut)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleAddJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/clear", s.handleClearJobs).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleDeleteJob).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/{id}/start", s.handleStartJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/retry", s.handleRetryJob).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleEvents).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router = router
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends open websocket streams. http.Server.Shutdown does not track
// hijacked connections.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Defaults returns the settings currently given to new jobs.
func (s *Server) Defaults() queue.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if s.opts.Status != nil {
		resp = s.opts.Status(r.Context())
	}
	resp.JobCounts = make(map[string]int)
	for _, status := range queue.AllStatuses() {
		resp.JobCounts[string(status)] = 0
	}
	for _, job := range s.manager.List() {
		resp.JobCounts[string(job.Status)]++
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := make(map[queue.Status]struct{})
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, r, http.StatusBadRequest, "unknown status "+value)
			return
		}
		filter[status] = struct{}{}
	}
	jobs := s.manager.List()
	if len(filter) > 0 {
		kept := jobs[:0]
		for _, job := range jobs {
			if _, ok := filter[job.Status]; ok {
				kept = append(kept, job)
			}
		}
		jobs = kept
	}
	s.writeJSON(w, r, http.StatusOK, JobListResponse{Jobs: FromJobs(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.manager.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeFailure(w, r, workflow.ErrJobNotFound)
		return
	}
	s.writeJSON(w, r, http.StatusOK, JobResponse{Job: FromJob(job, true)})
}

func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	var (
		req      AddJobRequest
		err      error
		uploaded bool
	)
	if isMultipart(r) {
		req, err = s.receiveUpload(w, r)
		uploaded = err == nil
	} else {
		err = decodeJSON(r, &req)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	settings := s.Defaults()
	if req.Settings != nil {
		settings = req.Settings.ToSettings()
	}
	if err := settings.Validate(); err != nil {
		if uploaded {
			_ = os.Remove(req.Path)
		}
		s.writeFailure(w, r, err)
		return
	}
	job, err := s.manager.Add(r.Context(), req.Path, settings)
	if err != nil {
		if uploaded {
			_ = os.Remove(req.Path)
		}
		s.writeFailure(w, r, err)
		return
	}
	if req.Start {
		if job, err = s.manager.Start(r.Context(), job.ID); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}
	s.writeJSON(w, r, http.StatusCreated, JobResponse{Job: FromJob(job, false)})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, JobResponse{Job: FromJob(job, false)})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, JobResponse{Job: FromJob(job, false)})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.manager.Delete(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ClearResponse{Removed: []string{id}})
}

func (s *Server) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.ClearFinished(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, ClearResponse{Removed: removed})
}

// handleApplySettings re-snapshots settings onto every job that is not
// processing and makes them the default for jobs added later.
func (s *Server) handleApplySettings(w http.ResponseWriter, r *http.Request) {
	var body Settings
	if err := decodeJSON(r, &body); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	settings := body.ToSettings()
	if err := settings.Validate(); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	updated, err := s.manager.ApplySettings(r.Context(), settings)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.mu.Lock()
	s.defaults = settings
	s.mu.Unlock()
	s.writeJSON(w, r, http.StatusOK, ApplySettingsResponse{Updated: updated})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode request", "invalid JSON body", err)
	}
	return nil
}

// statusForError maps error classifications onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrJobBusy), errors.Is(err, workflow.ErrJobNotIdle):
		return http.StatusConflict
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch services.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "configuration":
		return http.StatusServiceUnavailable
	case "timeout":
		return http.StatusGatewayTimeout
	case "external":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, r, status, ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, ErrorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.WithContext(r.Context(), s.logger).Error("failed to encode response", logging.Error(err))
	}
}
