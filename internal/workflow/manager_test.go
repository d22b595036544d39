package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"subforge/internal/queue"
	"subforge/internal/stages"
	"subforge/internal/testsupport"
	"subforge/internal/workflow"
)

func TestBasicPipelineCompletesWithValidSubtitles(t *testing.T) {
	h := newHarness(t, workflow.WithDurationProber(fakeProber{ms: 125000}))
	job := h.addJob("talk.mp3", basicSettings())
	events, cancel := h.manager.Subscribe()
	defer cancel()

	got := h.run(job.ID)

	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.Error)
	}
	if got.Result != strings.TrimSpace(validSRT) {
		t.Fatalf("result = %q", got.Result)
	}
	if len(got.Subtitles) != 2 || got.Subtitles[1].Text != "Second line" {
		t.Fatalf("subtitles = %+v", got.Subtitles)
	}
	if got.Validation == nil || !got.Validation.IsValid {
		t.Fatalf("validation = %+v", got.Validation)
	}
	if got.Progress != "" || got.Error != "" {
		t.Fatalf("progress/error not cleared: %q %q", got.Progress, got.Error)
	}
	if got.DurationMs != 125000 {
		t.Fatalf("duration = %d", got.DurationMs)
	}
	if got.SubtitlePath != filepath.Join("/exports", "talk.srt") {
		t.Fatalf("subtitle path = %q", got.SubtitlePath)
	}
	if got.Stages != nil {
		t.Fatalf("basic jobs carry no stages, got %+v", got.Stages)
	}

	calls := h.transcriber.transcribeCalls
	if len(calls) != 1 || calls[0].model != "pro" || calls[0].file.Name != "files/talk.mp3" {
		t.Fatalf("transcribe calls = %+v", calls)
	}
	for _, want := range []string{"at most 42 characters", "Remove filler words", "00:02:05,000"} {
		if !strings.Contains(calls[0].prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, calls[0].prompt)
		}
	}

	var labels []string
	var finished []queue.Status
	for len(events) > 0 {
		ev := <-events
		if ev.Finished {
			finished = append(finished, ev.Job.Status)
		}
		if ev.Job != nil && ev.Job.Progress != "" && (len(labels) == 0 || labels[len(labels)-1] != ev.Job.Progress) {
			labels = append(labels, ev.Job.Progress)
		}
	}
	want := []string{
		workflow.ProgressUploading,
		workflow.ProgressDuration,
		workflow.ProgressPrompt,
		workflow.ProgressSubmitting,
		workflow.ProgressGenerating,
		workflow.ProgressValidating,
	}
	if !slices.Equal(labels, want) {
		t.Fatalf("progress labels = %v, want %v", labels, want)
	}
	if len(finished) != 1 || finished[0] != queue.StatusCompleted {
		t.Fatalf("finished events = %v", finished)
	}

	persisted, err := h.store.GetByID(context.Background(), job.ID)
	if err != nil || persisted == nil {
		t.Fatalf("GetByID: %v %v", persisted, err)
	}
	if persisted.Status != queue.StatusCompleted || len(persisted.Subtitles) != 2 {
		t.Fatalf("persisted job = %+v", persisted)
	}
}

func TestInvalidSubtitlesStillComplete(t *testing.T) {
	h := newHarness(t)
	h.transcriber.transcribe = func(context.Context, workflow.FileRef, string, string) (string, error) {
		return invalidSRT, nil
	}
	job := h.addJob("talk.mp3", basicSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Subtitles != nil {
		t.Fatalf("invalid output must withhold subtitles, got %+v", got.Subtitles)
	}
	if got.Validation == nil || got.Validation.IsValid || len(got.Validation.Errors) == 0 {
		t.Fatalf("validation = %+v", got.Validation)
	}
	if got.Result != invalidSRT {
		t.Fatalf("result = %q", got.Result)
	}
}

func TestBasicPipelineFailureRecordsCause(t *testing.T) {
	h := newHarness(t)
	h.transcriber.transcribe = func(context.Context, workflow.FileRef, string, string) (string, error) {
		return "", failWith("quota exhausted")
	}
	job := h.addJob("talk.mp3", basicSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	if !strings.Contains(got.Error, "quota exhausted") {
		t.Fatalf("error = %q", got.Error)
	}
	if got.Progress != "" || got.Result != "" {
		t.Fatalf("progress/result should be empty: %q %q", got.Progress, got.Result)
	}
}

func TestStagingFailureFailsJob(t *testing.T) {
	h := newHarness(t)
	h.storage.stageErr = failWith("upload rejected")
	job := h.addJob("talk.mp3", basicSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusError || !strings.Contains(got.Error, "upload rejected") {
		t.Fatalf("job = %s %q", got.Status, got.Error)
	}
	if n, _, _, _ := h.transcriber.counts(); n != 0 {
		t.Fatalf("transcriber should not be called, got %d calls", n)
	}
}

func TestAdvancedStagingFailureMarksInitialStage(t *testing.T) {
	h := newHarness(t)
	h.storage.stageErr = failWith("upload rejected")
	job := h.addJob("lecture.wav", advancedSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	initial := got.Stages[stages.InitialTranscription]
	if initial.Status != stages.StatusError || !strings.Contains(initial.Error, "upload rejected") {
		t.Fatalf("initial stage = %+v", initial)
	}
	for _, key := range []stages.Key{stages.TopicAnalysis, stages.DictionaryCreation, stages.FinalTranscription} {
		if got.Stages[key].Status != stages.StatusPending {
			t.Fatalf("stage %s = %s, want pending", key, got.Stages[key].Status)
		}
	}
	if n, _, _, _ := h.transcriber.counts(); n != 0 {
		t.Fatalf("transcriber should not be called, got %d calls", n)
	}
}

func TestDurationProbeFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, workflow.WithDurationProber(fakeProber{err: errors.New("no ffprobe")}))
	job := h.addJob("talk.mp3", basicSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusCompleted || got.DurationMs != 0 {
		t.Fatalf("job = %s duration=%d", got.Status, got.DurationMs)
	}
	if strings.Contains(h.transcriber.transcribeCalls[0].prompt, "long; no timestamp") {
		t.Fatal("prompt should omit unknown duration")
	}
}

func TestSubtitleExportFailureDoesNotFailJob(t *testing.T) {
	h := newHarness(t)
	h.storage.exportErr = errors.New("disk full")
	job := h.addJob("talk.mp3", basicSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusCompleted || got.SubtitlePath != "" {
		t.Fatalf("job = %s path=%q", got.Status, got.SubtitlePath)
	}
}

func TestAdvancedPipelineRunsAllStages(t *testing.T) {
	h := newHarness(t, workflow.WithDurationProber(fakeProber{ms: 60000}))
	h.transcriber.transcribe = func(_ context.Context, _ workflow.FileRef, prompt, model string) (string, error) {
		if model != "flash" {
			t.Errorf("initial transcript model = %q", model)
		}
		return "[00:00:01,000 --> 00:00:04,000] hello world", nil
	}
	settings := advancedSettings()
	settings.EnableSpeakerDetection = true
	job := h.addJob("lecture.wav", settings)

	got := h.run(job.ID)

	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.Error)
	}
	for _, state := range got.Stages.Ordered() {
		if state.Status != stages.StatusCompleted {
			t.Fatalf("stage %s = %s", state.Name, state.Status)
		}
	}
	if got.Stages[stages.InitialTranscription].Result != "[00:00:01,000 --> 00:00:04,000] hello world" {
		t.Fatalf("initial result = %q", got.Stages[stages.InitialTranscription].Result)
	}
	if got.MainTopic != "Chess Openings" || !strings.HasPrefix(got.AnalyzedTopic, "MAIN_TOPIC:") {
		t.Fatalf("topic = %q / %q", got.MainTopic, got.AnalyzedTopic)
	}
	if !strings.Contains(got.Dictionary, "Ruy Lopez") || got.Stages[stages.DictionaryCreation].Result != got.Dictionary {
		t.Fatalf("dictionary = %q", got.Dictionary)
	}
	if got.DictionaryPath != filepath.Join("/exports", "lecture_dictionary.csv") {
		t.Fatalf("dictionary path = %q", got.DictionaryPath)
	}
	if len(got.Subtitles) != 2 || !got.Validation.IsValid {
		t.Fatalf("subtitles = %+v validation=%+v", got.Subtitles, got.Validation)
	}

	_, analyze, dict, enhance := h.transcriber.counts()
	if analyze != 1 || dict != 1 || enhance != 1 {
		t.Fatalf("calls analyze=%d dict=%d enhance=%d", analyze, dict, enhance)
	}
	req := h.transcriber.enhanceCalls[0]
	if req.InitialTranscript != "[00:00:01,000 --> 00:00:04,000] hello world" || req.Dictionary != got.Dictionary {
		t.Fatalf("enhance request = %+v", req)
	}
	if req.MaxCharsPerSubtitle != 42 || !req.EnableSpeakerDetection || req.DurationMs != 60000 {
		t.Fatalf("enhance settings = %+v", req)
	}
	exported := h.storage.exportedNames()
	if _, ok := exported["lecture_dictionary.csv"]; !ok {
		t.Fatalf("dictionary not exported: %v", exported)
	}
	if _, ok := exported["lecture.srt"]; !ok {
		t.Fatalf("subtitles not exported: %v", exported)
	}
}

func TestAdvancedPipelineAbortsOnTopicFailure(t *testing.T) {
	h := newHarness(t)
	h.transcriber.analyze = func(context.Context, string) (string, error) {
		return "", failWith("search unavailable")
	}
	job := h.addJob("lecture.wav", advancedSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	want := map[stages.Key]stages.Status{
		stages.InitialTranscription: stages.StatusCompleted,
		stages.TopicAnalysis:        stages.StatusError,
		stages.DictionaryCreation:   stages.StatusPending,
		stages.FinalTranscription:   stages.StatusPending,
	}
	for key, status := range want {
		if got.Stages[key].Status != status {
			t.Fatalf("stage %s = %s, want %s", key, got.Stages[key].Status, status)
		}
	}
	if !strings.Contains(got.Stages[stages.TopicAnalysis].Error, "search unavailable") {
		t.Fatalf("topic stage error = %q", got.Stages[stages.TopicAnalysis].Error)
	}
	if !strings.Contains(got.Error, "search unavailable") {
		t.Fatalf("job error = %q", got.Error)
	}
	if _, _, dict, enhance := h.transcriber.counts(); dict != 0 || enhance != 0 {
		t.Fatalf("later stages ran: dict=%d enhance=%d", dict, enhance)
	}
}

func TestAdvancedPipelineUsesCustomDictionaryVerbatim(t *testing.T) {
	h := newHarness(t)
	dictPath := filepath.Join(h.dir, "terms.csv")
	content := "term,reading\nKasparov,kas-PAR-off\n"
	testsupport.WriteText(t, dictPath, content)
	settings := advancedSettings()
	settings.CustomDictionary = dictPath
	job := h.addJob("match.mp3", settings)

	got := h.run(job.ID)

	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.Error)
	}
	if got.Dictionary != content || got.Stages[stages.DictionaryCreation].Result != content {
		t.Fatalf("dictionary = %q", got.Dictionary)
	}
	if got.DictionaryPath != dictPath {
		t.Fatalf("dictionary path = %q", got.DictionaryPath)
	}
	if _, _, dict, _ := h.transcriber.counts(); dict != 0 {
		t.Fatalf("dictionary service called %d times", dict)
	}
	if _, ok := h.storage.exportedNames()["match_dictionary.csv"]; ok {
		t.Fatal("custom dictionary must not be exported again")
	}
	if h.transcriber.enhanceCalls[0].Dictionary != content {
		t.Fatalf("enhance dictionary = %q", h.transcriber.enhanceCalls[0].Dictionary)
	}
}

func TestAdvancedPipelineMissingCustomDictionaryFailsStage(t *testing.T) {
	h := newHarness(t)
	settings := advancedSettings()
	settings.CustomDictionary = filepath.Join(h.dir, "missing.csv")
	job := h.addJob("match.mp3", settings)

	got := h.run(job.ID)

	if got.Status != queue.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Stages[stages.DictionaryCreation].Status != stages.StatusError {
		t.Fatalf("dictionary stage = %s", got.Stages[stages.DictionaryCreation].Status)
	}
	if got.Stages[stages.FinalTranscription].Status != stages.StatusPending {
		t.Fatalf("final stage = %s", got.Stages[stages.FinalTranscription].Status)
	}
}

func TestRetryRestartsFromScratch(t *testing.T) {
	h := newHarness(t)
	failing := true
	h.transcriber.analyze = func(context.Context, string) (string, error) {
		if failing {
			return "", failWith("boom")
		}
		return "MAIN_TOPIC: go\n", nil
	}
	job := h.addJob("talk.mp3", advancedSettings())

	first := h.run(job.ID)
	if first.Status != queue.StatusError {
		t.Fatalf("first run status = %s", first.Status)
	}

	failing = false
	if _, err := h.manager.Retry(context.Background(), job.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	h.manager.Wait()
	got, _ := h.manager.Get(job.ID)

	if got.Status != queue.StatusCompleted || got.Error != "" {
		t.Fatalf("retry result = %s %q", got.Status, got.Error)
	}
	if got.RunToken <= first.RunToken {
		t.Fatalf("run token %d should exceed %d", got.RunToken, first.RunToken)
	}
	if n, analyze, _, _ := h.transcriber.counts(); n != 2 || analyze != 2 {
		t.Fatalf("retry must rerun every stage: transcribe=%d analyze=%d", n, analyze)
	}
}

func TestStartRequiresIdleAndRejectsBusyJobs(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.transcriber.transcribe = func(ctx context.Context, _ workflow.FileRef, _, _ string) (string, error) {
		<-release
		return validSRT, nil
	}
	job := h.addJob("talk.mp3", basicSettings())

	started, err := h.manager.Start(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != queue.StatusProcessing {
		t.Fatalf("started status = %s", started.Status)
	}
	if _, err := h.manager.Retry(context.Background(), job.ID); !errors.Is(err, workflow.ErrJobBusy) {
		t.Fatalf("Retry while processing = %v", err)
	}
	if _, err := h.manager.Run(context.Background(), job.ID); !errors.Is(err, workflow.ErrJobBusy) {
		t.Fatalf("Run while processing = %v", err)
	}
	close(release)
	h.waitForStatus(job.ID, queue.StatusCompleted)

	if _, err := h.manager.Start(context.Background(), job.ID); !errors.Is(err, workflow.ErrJobNotIdle) {
		t.Fatalf("Start after completion = %v", err)
	}
	if _, err := h.manager.Start(context.Background(), "missing"); !errors.Is(err, workflow.ErrJobNotFound) {
		t.Fatalf("Start unknown = %v", err)
	}
}

func TestDeleteDetachesRunningPipeline(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.transcriber.transcribe = func(context.Context, workflow.FileRef, string, string) (string, error) {
		close(entered)
		<-release
		return validSRT, nil
	}
	job := h.addJob("talk.mp3", basicSettings())

	if _, err := h.manager.Start(context.Background(), job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	if err := h.manager.Delete(context.Background(), job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	close(release)
	h.manager.Wait()

	if _, ok := h.manager.Get(job.ID); ok {
		t.Fatal("deleted job reappeared in the active set")
	}
	persisted, err := h.store.GetByID(context.Background(), job.ID)
	if err != nil || persisted != nil {
		t.Fatalf("deleted job persisted again: %+v %v", persisted, err)
	}
}

func TestPanicIsRecordedAsJobError(t *testing.T) {
	h := newHarness(t)
	h.transcriber.transcribe = func(context.Context, workflow.FileRef, string, string) (string, error) {
		panic("nil map write")
	}
	job := h.addJob("talk.mp3", advancedSettings())

	got := h.run(job.ID)

	if got.Status != queue.StatusError || !strings.Contains(got.Error, "nil map write") {
		t.Fatalf("job = %s %q", got.Status, got.Error)
	}
	if got.Stages[stages.InitialTranscription].Status != stages.StatusError {
		t.Fatalf("processing stage should be marked error, got %s", got.Stages[stages.InitialTranscription].Status)
	}
}

func TestApplySettingsSkipsProcessingJobs(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.transcriber.transcribe = func(context.Context, workflow.FileRef, string, string) (string, error) {
		<-release
		return validSRT, nil
	}
	busy := h.addJob("busy.mp3", basicSettings())
	idle := h.addJob("idle.mp3", basicSettings())
	if _, err := h.manager.Start(context.Background(), busy.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	next := basicSettings()
	next.MaxCharsPerSubtitle = 20
	next.EnableAdvancedProcessing = true
	count, err := h.manager.ApplySettings(context.Background(), next)
	if err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	close(release)
	h.manager.Wait()

	if count != 1 {
		t.Fatalf("updated = %d, want 1", count)
	}
	gotIdle, _ := h.manager.Get(idle.ID)
	if gotIdle.Settings != next {
		t.Fatalf("idle settings = %+v", gotIdle.Settings)
	}
	gotBusy, _ := h.manager.Get(busy.ID)
	if gotBusy.Settings.MaxCharsPerSubtitle != 42 {
		t.Fatalf("processing job settings changed: %+v", gotBusy.Settings)
	}
	persisted, _ := h.store.GetByID(context.Background(), idle.ID)
	if persisted.Settings != next {
		t.Fatalf("persisted settings = %+v", persisted.Settings)
	}
}

func TestClearFinishedRemovesOnlyTerminalJobs(t *testing.T) {
	h := newHarness(t)
	h.transcriber.transcribe = func(_ context.Context, file workflow.FileRef, _, _ string) (string, error) {
		if strings.Contains(file.Name, "bad") {
			return "", failWith("nope")
		}
		return validSRT, nil
	}
	done := h.addJob("good.mp3", basicSettings())
	failed := h.addJob("bad.mp3", basicSettings())
	idle := h.addJob("later.mp3", basicSettings())
	h.run(done.ID)
	h.run(failed.ID)

	removed, err := h.manager.ClearFinished(context.Background())
	if err != nil {
		t.Fatalf("ClearFinished: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed = %v", removed)
	}
	jobs := h.manager.List()
	if len(jobs) != 1 || jobs[0].ID != idle.ID {
		t.Fatalf("remaining = %+v", jobs)
	}
}

func TestAddRejectsMissingFile(t *testing.T) {
	h := newHarness(t)
	if _, err := h.manager.Add(context.Background(), filepath.Join(h.dir, "nope.mp3"), basicSettings()); err == nil {
		t.Fatal("expected missing file error")
	}
	if _, err := h.manager.Add(context.Background(), h.dir, basicSettings()); err == nil {
		t.Fatal("expected directory error")
	}
}

func TestLoadRestoresJobsAndTokens(t *testing.T) {
	h := newHarness(t)
	job := h.addJob("talk.mp3", basicSettings())
	first := h.run(job.ID)

	reloaded := workflow.NewManager(nil, h.store, h.transcriber, h.storage, nil)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := reloaded.Get(job.ID)
	if !ok || got.Status != queue.StatusCompleted {
		t.Fatalf("reloaded job = %+v", got)
	}
	again, err := reloaded.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if again.RunToken <= first.RunToken {
		t.Fatalf("token %d should exceed %d after reload", again.RunToken, first.RunToken)
	}
}

func TestSourceRemovedBeforeRunFailsJob(t *testing.T) {
	h := newHarness(t)
	job := h.addJob("talk.mp3", basicSettings())
	if err := os.Remove(job.SourcePath); err != nil {
		t.Fatal(err)
	}
	got := h.run(job.ID)
	if got.Status != queue.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
}
