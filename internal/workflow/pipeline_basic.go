package workflow

import (
	"context"
)

// runBasic transcribes the file with a single model call.
func (r *run) runBasic(ctx context.Context) error {
	file, err := r.stageAudio(ctx)
	if err != nil {
		return err
	}
	durationMs := r.probeDuration(ctx)

	r.progress(ctx, ProgressPrompt)
	prompt := TranscriptionPrompt(r.settings, durationMs)

	r.progress(ctx, ProgressSubmitting)
	raw, err := r.m.transcriber.Transcribe(ctx, file, prompt, r.m.models.Transcription)
	if err != nil {
		return err
	}

	r.complete(ctx, r.checkSubtitles(ctx, raw), false)
	return nil
}
