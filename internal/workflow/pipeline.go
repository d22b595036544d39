package workflow

import (
	"context"
	"os"
	"strings"

	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/services"
	"subforge/internal/srt"
	"subforge/internal/stages"
)

// Progress labels shown while a job runs.
const (
	ProgressUploading   = "Uploading audio file"
	ProgressDuration    = "Detecting audio duration"
	ProgressPrompt      = "Preparing prompt"
	ProgressSubmitting  = "Submitting transcription request"
	ProgressGenerating  = "Generating subtitles"
	ProgressValidating  = "Validating subtitles"
	ProgressInitial     = "Creating initial transcript"
	ProgressTopic       = "Analyzing topic"
	ProgressDictionary  = "Building dictionary"
	ProgressCustomDict  = "Loading custom dictionary"
	ProgressFinal       = "Generating final subtitles"
	subtitleExtension   = ".srt"
	dictionaryExtension = "_dictionary.csv"
)

// stageAudio reads the source file and hands it to storage.
func (r *run) stageAudio(ctx context.Context) (FileRef, error) {
	r.progress(ctx, ProgressUploading)
	data, err := os.ReadFile(r.source)
	if err != nil {
		return FileRef{}, services.Wrap(services.ErrValidation, "workflow", "read source", r.source, err)
	}
	return r.m.storage.StageFile(ctx, data, r.fileName)
}

// probeDuration returns the audio duration in milliseconds, or zero when it
// cannot be determined. Probe failures never fail the job.
func (r *run) probeDuration(ctx context.Context) int64 {
	r.progress(ctx, ProgressDuration)
	if r.m.prober == nil {
		return 0
	}
	ms, err := r.m.prober.DurationMs(ctx, r.source)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "audio duration unavailable", "duration_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffprobe or set media.ffprobe_binary"),
			logging.String(logging.FieldImpact, "subtitle timestamps are not bounded by the audio length"),
		)
		return 0
	}
	r.update(ctx, func(job *queue.Job) {
		job.DurationMs = ms
	})
	return ms
}

// checkedSubtitles holds the outcome of extracting and validating model output.
type checkedSubtitles struct {
	text       string
	records    []srt.Record
	validation srt.Validation
}

func (r *run) checkSubtitles(ctx context.Context, raw string) checkedSubtitles {
	r.progress(ctx, ProgressGenerating)
	text := srt.ExtractContent(raw)
	r.progress(ctx, ProgressValidating)
	out := checkedSubtitles{text: text, validation: srt.Validate(text)}
	if out.validation.IsValid {
		out.records = srt.Parse(text)
	} else {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "generated subtitles failed validation", "subtitle_validation_failed",
			logging.Int("error_count", len(out.validation.Errors)),
			logging.String("first_error", firstOrEmpty(out.validation.Errors)),
			logging.String(logging.FieldErrorHint, "review the result text or retry the job"),
			logging.String(logging.FieldImpact, "parsed subtitles withheld"),
		)
	}
	return out
}

// complete marks the job completed with the checked subtitles and exports
// the result text. Export failures are logged only.
func (r *run) complete(ctx context.Context, subs checkedSubtitles, finalStage bool) {
	exportPath := r.exportSubtitles(ctx, subs.text)
	r.update(ctx, func(job *queue.Job) {
		job.Status = queue.StatusCompleted
		job.Progress = ""
		job.Error = ""
		job.Result = subs.text
		validation := subs.validation
		job.Validation = &validation
		job.Subtitles = subs.records
		job.SubtitlePath = exportPath
		if finalStage {
			job.Stages = job.Stages.Apply(stages.FinalTranscription, stages.Completed(subs.text))
		}
	})
}

func (r *run) exportSubtitles(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	path, err := r.m.storage.ExportText(ctx, text, r.baseName+subtitleExtension)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "subtitle export failed", "subtitle_export_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.export_dir is writable"),
			logging.String(logging.FieldImpact, "result is only available from the job record"),
		)
		return ""
	}
	return path
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
