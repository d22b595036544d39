package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"subforge/internal/services"
)

// Client talks to a daemon's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient returns a client for baseURL, e.g. "http://127.0.0.1:7488".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURLFromBind converts a listen address into a URL a local client can
// dial. Wildcard hosts are replaced by the loopback address.
func BaseURLFromBind(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "http://" + strings.TrimSpace(bind)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Error is a non-2xx API response. It unwraps to the services marker named by
// Kind so callers can use errors.Is across the HTTP boundary.
type Error struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.StatusCode)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case "validation":
		return services.ErrValidation
	case "not_found":
		return services.ErrNotFound
	case "configuration":
		return services.ErrConfiguration
	case "timeout":
		return services.ErrTimeout
	case "external":
		return services.ErrExternalTool
	case "transient":
		return services.ErrTransient
	}
	if e.StatusCode == http.StatusNotFound {
		return services.ErrNotFound
	}
	return nil
}

// Status returns daemon status and job counts.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// ListJobs returns jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, statuses ...string) ([]Job, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		query := url.Values{"status": statuses}
		path += "?" + query.Encode()
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob returns one job including its subtitle records.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp)
	return resp.Job, err
}

// AddJob registers a file that already exists on the daemon host.
func (c *Client) AddJob(ctx context.Context, req AddJobRequest) (Job, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Job{}, err
	}
	var resp JobResponse
	err = c.do(ctx, http.MethodPost, "/api/jobs", jsonBody(body), &resp)
	return resp.Job, err
}

// UploadJob streams a local audio file to the daemon as a new job.
func (c *Client) UploadJob(ctx context.Context, path string, settings *Settings, start bool) (Job, error) {
	file, err := os.Open(path)
	if err != nil {
		return Job{}, err
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(writer, file, filepath.Base(path), settings, start))
	}()

	// Uploads are bounded by ctx only.
	uploader := *c
	httpClient := *c.http
	httpClient.Timeout = 0
	uploader.http = &httpClient

	var resp JobResponse
	err = uploader.do(ctx, http.MethodPost, "/api/jobs", &requestBody{reader: pr, contentType: writer.FormDataContentType()}, &resp)
	_ = pr.Close()
	return resp.Job, err
}

func writeUpload(writer *multipart.Writer, file io.Reader, name string, settings *Settings, start bool) error {
	if settings != nil {
		raw, err := json.Marshal(settings)
		if err != nil {
			return err
		}
		if err := writer.WriteField(uploadSettingsField, string(raw)); err != nil {
			return err
		}
	}
	if err := writer.WriteField(uploadStartField, strconv.FormatBool(start)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile(uploadFileField, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return writer.Close()
}

// StartJob begins processing an idle job.
func (c *Client) StartJob(ctx context.Context, id string) (Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/start", nil, &resp)
	return resp.Job, err
}

// RetryJob re-runs a job from scratch.
func (c *Client) RetryJob(ctx context.Context, id string) (Job, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, &resp)
	return resp.Job, err
}

// RemoveJob deletes a job.
func (c *Client) RemoveJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

// ClearFinished removes completed and failed jobs.
func (c *Client) ClearFinished(ctx context.Context) ([]string, error) {
	var resp ClearResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/clear", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Removed, nil
}

// ApplySettings re-snapshots settings onto every job that is not processing.
func (c *Client) ApplySettings(ctx context.Context, settings Settings) (int, error) {
	body, err := json.Marshal(settings)
	if err != nil {
		return 0, err
	}
	var resp ApplySettingsResponse
	if err := c.do(ctx, http.MethodPut, "/api/settings", jsonBody(body), &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

type requestBody struct {
	reader      io.Reader
	contentType string
}

func jsonBody(data []byte) *requestBody {
	return &requestBody{reader: bytes.NewReader(data), contentType: "application/json"}
}

func (c *Client) do(ctx context.Context, method, path string, body *requestBody, out any) error {
	var reader io.Reader
	if body != nil {
		reader = body.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(data, &payload) == nil {
				apiErr.Message = payload.Error
				apiErr.Kind = payload.Kind
			} else {
				apiErr.Message = strings.TrimSpace(string(data))
			}
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsUnavailable reports whether err means no daemon answered, as opposed to
// a daemon rejecting the request.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.As(err, &netErr)
}
