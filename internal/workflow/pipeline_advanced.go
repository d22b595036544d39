package workflow

import (
	"context"
	"os"
	"strings"

	"subforge/internal/logging"
	"subforge/internal/queue"
	"subforge/internal/services"
	"subforge/internal/stages"
	"subforge/internal/textutil"
)

// runAdvanced executes the four advanced stages in order. A failing stage
// is marked error and the stages after it stay pending. Audio staging
// belongs to the initial transcription stage.
func (r *run) runAdvanced(ctx context.Context) error {
	var durationMs int64
	initial, err := r.runStage(ctx, stages.InitialTranscription, ProgressUploading, func(ctx context.Context) (string, error) {
		file, err := r.stageAudio(ctx)
		if err != nil {
			return "", err
		}
		durationMs = r.probeDuration(ctx)
		r.progress(ctx, ProgressInitial)
		return r.m.transcriber.Transcribe(ctx, file, InitialTranscriptPrompt(durationMs), r.m.models.Initial)
	})
	if err != nil {
		return err
	}

	analysis, err := r.runStage(ctx, stages.TopicAnalysis, ProgressTopic, func(ctx context.Context) (string, error) {
		analysis, err := r.m.transcriber.AnalyzeTopic(ctx, initial)
		if err != nil {
			return "", err
		}
		mainTopic := textutil.DisplayTitle(ParseMainTopic(analysis))
		r.update(ctx, func(job *queue.Job) {
			job.AnalyzedTopic = analysis
			job.MainTopic = mainTopic
		})
		return analysis, nil
	})
	if err != nil {
		return err
	}

	dictionary, err := r.runStage(ctx, stages.DictionaryCreation, r.dictionaryLabel(), func(ctx context.Context) (string, error) {
		return r.buildDictionary(ctx, analysis)
	})
	if err != nil {
		return err
	}

	raw, err := r.runStage(ctx, stages.FinalTranscription, ProgressFinal, func(ctx context.Context) (string, error) {
		return r.m.transcriber.Enhance(ctx, EnhanceRequest{
			InitialTranscript:      initial,
			Dictionary:             dictionary,
			MaxCharsPerSubtitle:    r.settings.MaxCharsPerSubtitle,
			EnableSpeakerDetection: r.settings.EnableSpeakerDetection,
			DurationMs:             durationMs,
		})
	})
	if err != nil {
		return err
	}

	r.complete(ctx, r.checkSubtitles(ctx, raw), true)
	return nil
}

// runStage marks key processing, runs fn and records its outcome on the
// stage. The final stage is completed together with the job.
func (r *run) runStage(ctx context.Context, key stages.Key, label string, fn func(context.Context) (string, error)) (string, error) {
	ctx = services.WithStage(ctx, string(key))
	r.update(ctx, func(job *queue.Job) {
		job.Stages = job.Stages.Apply(key, stages.Processing())
		job.Progress = label
	})

	result, err := fn(ctx)
	if err != nil {
		r.update(ctx, func(job *queue.Job) {
			job.Stages = job.Stages.Apply(key, stages.Failed(err.Error()))
		})
		return "", err
	}
	if key != stages.FinalTranscription {
		r.update(ctx, func(job *queue.Job) {
			job.Stages = job.Stages.Apply(key, stages.Completed(result))
		})
	}
	logging.WithContext(ctx, r.logger).Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("result_chars", len(result)),
	)
	return result, nil
}

func (r *run) dictionaryLabel() string {
	if r.settings.CustomDictionary != "" {
		return ProgressCustomDict
	}
	if job, ok := r.m.Get(r.jobID); ok && job.MainTopic != "" {
		return ProgressDictionary + " for " + job.MainTopic
	}
	return ProgressDictionary
}

// buildDictionary loads the custom dictionary verbatim when one is set.
// Otherwise it asks the transcriber for one and exports it as CSV.
func (r *run) buildDictionary(ctx context.Context, analysis string) (string, error) {
	var dictionary string
	if path := strings.TrimSpace(r.settings.CustomDictionary); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "workflow", "load dictionary", path, err)
		}
		dictionary = string(data)
		r.update(ctx, func(job *queue.Job) {
			job.Dictionary = dictionary
			job.DictionaryPath = path
		})
		return dictionary, nil
	}

	dictionary, err := r.m.transcriber.CreateDictionary(ctx, analysis)
	if err != nil {
		return "", err
	}
	path, err := r.m.storage.ExportText(ctx, dictionary, r.baseName+dictionaryExtension)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "workflow", "export dictionary", "", err)
	}
	r.update(ctx, func(job *queue.Job) {
		job.Dictionary = dictionary
		job.DictionaryPath = path
	})
	return dictionary, nil
}
