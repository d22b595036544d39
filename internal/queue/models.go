package queue

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"subforge/internal/config"
	"subforge/internal/services"
	"subforge/internal/srt"
	"subforge/internal/stages"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// InterruptedReason is recorded on jobs that were processing when the daemon stopped.
const InterruptedReason = "Interrupted before completion; retry to run again"

var allStatuses = []Status{StatusIdle, StatusProcessing, StatusCompleted, StatusError}

// ParseStatus validates a user supplied status name.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	return status, slices.Contains(allStatuses, status)
}

// AllStatuses returns the known statuses in lifecycle order.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// Settings is the per-job snapshot of user transcription preferences.
type Settings struct {
	MaxCharsPerSubtitle      int    `json:"maxCharsPerSubtitle"`
	EnableSpeakerDetection   bool   `json:"enableSpeakerDetection"`
	RemoveFillerWords        bool   `json:"removeFillerWords"`
	EnableAdvancedProcessing bool   `json:"enableAdvancedProcessing"`
	CustomDictionary         string `json:"customDictionary,omitempty"`
}

// SettingsFromConfig returns the configured default settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return Settings{
		MaxCharsPerSubtitle:      cfg.Subtitles.MaxCharsPerSubtitle,
		EnableSpeakerDetection:   cfg.Subtitles.EnableSpeakerDetection,
		RemoveFillerWords:        cfg.Subtitles.RemoveFillerWords,
		EnableAdvancedProcessing: cfg.Subtitles.EnableAdvancedProcessing,
		CustomDictionary:         cfg.Subtitles.CustomDictionary,
	}
}

// Validate rejects settings a pipeline cannot honor.
func (s Settings) Validate() error {
	if s.MaxCharsPerSubtitle <= 0 {
		return fmt.Errorf("%w: max characters per subtitle must be positive", services.ErrValidation)
	}
	return nil
}

// Job is one audio file's transcription task and its accumulated state.
type Job struct {
	ID             string          `json:"id"`
	SourcePath     string          `json:"sourcePath"`
	FileName       string          `json:"fileName"`
	Settings       Settings        `json:"settings"`
	Status         Status          `json:"status"`
	Progress       string          `json:"progress,omitempty"`
	Result         string          `json:"result,omitempty"`
	Subtitles      []srt.Record    `json:"subtitles,omitempty"`
	Validation     *srt.Validation `json:"validation,omitempty"`
	Stages         stages.Map      `json:"stages,omitempty"`
	Dictionary     string          `json:"dictionary,omitempty"`
	AnalyzedTopic  string          `json:"analyzedTopic,omitempty"`
	MainTopic      string          `json:"mainTopic,omitempty"`
	Error          string          `json:"error,omitempty"`
	DurationMs     int64           `json:"durationMs,omitempty"`
	RunToken       uint64          `json:"runToken"`
	SubtitlePath   string          `json:"subtitlePath,omitempty"`
	DictionaryPath string          `json:"dictionaryPath,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewJob creates an idle job for sourcePath with a settings snapshot.
func NewJob(sourcePath string, settings Settings) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		FileName:   filepath.Base(sourcePath),
		Settings:   settings,
		Status:     StatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy so callers never share mutable state with the
// manager's active set.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Subtitles = slices.Clone(j.Subtitles)
	if j.Validation != nil {
		v := *j.Validation
		v.Errors = slices.Clone(j.Validation.Errors)
		cp.Validation = &v
	}
	if j.Stages != nil {
		cp.Stages = j.Stages.Clone()
	}
	return &cp
}

// IsFinished reports whether the job reached a terminal status.
func (j *Job) IsFinished() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// CanRun reports whether a new pipeline run may start.
func (j *Job) CanRun() bool {
	return j.Status != StatusProcessing
}

// ResetForRun clears the outputs of any previous run and tags the job with token.
func (j *Job) ResetForRun(token uint64) {
	j.RunToken = token
	j.Status = StatusProcessing
	j.Progress = ""
	j.Result = ""
	j.Subtitles = nil
	j.Validation = nil
	j.Stages = nil
	j.Dictionary = ""
	j.AnalyzedTopic = ""
	j.MainTopic = ""
	j.Error = ""
	j.SubtitlePath = ""
	j.DictionaryPath = ""
	if j.Settings.EnableAdvancedProcessing {
		j.Stages = stages.Merge(nil)
	}
}

// BaseName returns the source file name without its extension.
func (j *Job) BaseName() string {
	name := j.FileName
	if name == "" {
		name = filepath.Base(j.SourcePath)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
