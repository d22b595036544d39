package api

import "subforge/internal/srt"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Settings mirrors the per-job transcription preferences.
type Settings struct {
	MaxCharsPerSubtitle      int    `json:"maxCharsPerSubtitle"`
	EnableSpeakerDetection   bool   `json:"enableSpeakerDetection"`
	RemoveFillerWords        bool   `json:"removeFillerWords"`
	EnableAdvancedProcessing bool   `json:"enableAdvancedProcessing"`
	CustomDictionary         string `json:"customDictionary,omitempty"`
}

// Stage is one advanced pipeline stage in execution order.
type Stage struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Validation is the structural check outcome of a job's subtitles.
type Validation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Job describes a transcription job in a transport-friendly format.
type Job struct {
	ID             string       `json:"id"`
	FileName       string       `json:"fileName"`
	SourcePath     string       `json:"sourcePath"`
	Status         string       `json:"status"`
	Progress       string       `json:"progress,omitempty"`
	Result         string       `json:"result,omitempty"`
	Error          string       `json:"error,omitempty"`
	Settings       Settings     `json:"settings"`
	Subtitles      []srt.Record `json:"subtitles,omitempty"`
	SubtitleCount  int          `json:"subtitleCount"`
	Validation     *Validation  `json:"validation,omitempty"`
	Stages         []Stage      `json:"stages,omitempty"`
	Dictionary     string       `json:"dictionary,omitempty"`
	AnalyzedTopic  string       `json:"analyzedTopic,omitempty"`
	MainTopic      string       `json:"mainTopic,omitempty"`
	DurationMs     int64        `json:"durationMs,omitempty"`
	SubtitlePath   string       `json:"subtitlePath,omitempty"`
	DictionaryPath string       `json:"dictionaryPath,omitempty"`
	CreatedAt      string       `json:"createdAt,omitempty"`
	UpdatedAt      string       `json:"updatedAt,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// AddJobRequest accepts an audio file already present on the daemon host.
// A nil Settings uses the configured defaults.
type AddJobRequest struct {
	Path     string    `json:"path"`
	Settings *Settings `json:"settings,omitempty"`
	Start    bool      `json:"start,omitempty"`
}

// ClearResponse lists the jobs removed by a clear request.
type ClearResponse struct {
	Removed []string `json:"removed"`
}

// ApplySettingsResponse reports how many jobs received new settings.
type ApplySettingsResponse struct {
	Updated int `json:"updated"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath,omitempty"`
	LockFilePath string         `json:"lockFilePath,omitempty"`
	ExportDir    string         `json:"exportDir,omitempty"`
	JobCounts    map[string]int `json:"jobCounts"`
	Checks       []Check        `json:"checks,omitempty"`
}

// Check is one readiness probe result.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Event is a job lifecycle notification streamed over the websocket.
type Event struct {
	Type     string `json:"type"`
	JobID    string `json:"jobId"`
	Job      *Job   `json:"job,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
