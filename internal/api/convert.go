package api

import (
	"slices"

	"subforge/internal/queue"
	"subforge/internal/stages"
	"subforge/internal/workflow"
)

// FromJob converts a job to its API representation. Subtitle records are
// included only when withSubtitles is set, since list views do not need them.
func FromJob(job *queue.Job, withSubtitles bool) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:             job.ID,
		FileName:       job.FileName,
		SourcePath:     job.SourcePath,
		Status:         string(job.Status),
		Progress:       job.Progress,
		Result:         job.Result,
		Error:          job.Error,
		Settings:       FromSettings(job.Settings),
		SubtitleCount:  len(job.Subtitles),
		Stages:         stageSlice(job.Stages),
		Dictionary:     job.Dictionary,
		AnalyzedTopic:  job.AnalyzedTopic,
		MainTopic:      job.MainTopic,
		DurationMs:     job.DurationMs,
		SubtitlePath:   job.SubtitlePath,
		DictionaryPath: job.DictionaryPath,
	}
	if withSubtitles {
		dto.Subtitles = slices.Clone(job.Subtitles)
	}
	if job.Validation != nil {
		dto.Validation = &Validation{
			IsValid: job.Validation.IsValid,
			Errors:  slices.Clone(job.Validation.Errors),
		}
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of jobs without subtitle records.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job, false))
	}
	return out
}

// FromEvent converts a manager event.
func FromEvent(event workflow.Event) Event {
	out := Event{Type: string(event.Type), JobID: event.JobID, Finished: event.Finished}
	if event.Job != nil {
		job := FromJob(event.Job, false)
		out.Job = &job
	}
	return out
}

// FromSettings converts queue settings to the wire type.
func FromSettings(s queue.Settings) Settings {
	return Settings(s)
}

// ToSettings converts wire settings to queue settings.
func (s Settings) ToSettings() queue.Settings {
	return queue.Settings(s)
}

func stageSlice(m stages.Map) []Stage {
	if len(m) == 0 {
		return nil
	}
	out := make([]Stage, 0, len(m))
	for _, key := range stages.Keys() {
		state, ok := m[key]
		if !ok {
			continue
		}
		out = append(out, Stage{
			Key:         string(key),
			Name:        state.Name,
			Description: state.Description,
			Status:      string(state.Status),
			Result:      state.Result,
			Error:       state.Error,
		})
	}
	return out
}
