package workflow_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"subforge/internal/queue"
	"subforge/internal/testsupport"
	"subforge/internal/workflow"
)

const validSRT = "1\n00:00:01,000 --> 00:00:04,000\nHello world\n\n2\n00:00:05,000 --> 00:00:08,000\nSecond line\n"

const invalidSRT = "1\n00:00:01,000 --> 00:00:04,000\nHello\n\n3\n00:00:03,000 --> 00:00:02,000\nBackwards\n"

type transcribeCall struct {
	file   workflow.FileRef
	prompt string
	model  string
}

type fakeTranscriber struct {
	mu sync.Mutex

	transcribe func(ctx context.Context, file workflow.FileRef, prompt, model string) (string, error)
	analyze    func(ctx context.Context, transcript string) (string, error)
	dictionary func(ctx context.Context, topic string) (string, error)
	enhance    func(ctx context.Context, req workflow.EnhanceRequest) (string, error)

	transcribeCalls []transcribeCall
	analyzeCalls    []string
	dictionaryCalls []string
	enhanceCalls    []workflow.EnhanceRequest
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, file workflow.FileRef, prompt, model string) (string, error) {
	f.mu.Lock()
	f.transcribeCalls = append(f.transcribeCalls, transcribeCall{file: file, prompt: prompt, model: model})
	fn := f.transcribe
	f.mu.Unlock()
	if fn == nil {
		return "```srt\n" + validSRT + "```", nil
	}
	return fn(ctx, file, prompt, model)
}

func (f *fakeTranscriber) AnalyzeTopic(ctx context.Context, transcript string) (string, error) {
	f.mu.Lock()
	f.analyzeCalls = append(f.analyzeCalls, transcript)
	fn := f.analyze
	f.mu.Unlock()
	if fn == nil {
		return "MAIN_TOPIC: chess openings\nA talk about openings.", nil
	}
	return fn(ctx, transcript)
}

func (f *fakeTranscriber) CreateDictionary(ctx context.Context, topic string) (string, error) {
	f.mu.Lock()
	f.dictionaryCalls = append(f.dictionaryCalls, topic)
	fn := f.dictionary
	f.mu.Unlock()
	if fn == nil {
		return "term,reading,category,notes\nRuy Lopez,,opening,\n", nil
	}
	return fn(ctx, topic)
}

func (f *fakeTranscriber) Enhance(ctx context.Context, req workflow.EnhanceRequest) (string, error) {
	f.mu.Lock()
	f.enhanceCalls = append(f.enhanceCalls, req)
	fn := f.enhance
	f.mu.Unlock()
	if fn == nil {
		return "```srt\n" + validSRT + "```", nil
	}
	return fn(ctx, req)
}

func (f *fakeTranscriber) counts() (int, int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcribeCalls), len(f.analyzeCalls), len(f.dictionaryCalls), len(f.enhanceCalls)
}

type fakeStorage struct {
	mu        sync.Mutex
	staged    []string
	exported  map[string]string
	stageErr  error
	exportErr error
}

func (s *fakeStorage) StageFile(_ context.Context, data []byte, name string) (workflow.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stageErr != nil {
		return workflow.FileRef{}, s.stageErr
	}
	s.staged = append(s.staged, name)
	return workflow.FileRef{Name: "files/" + name, URI: "https://files/" + name, MimeType: "audio/mpeg"}, nil
}

func (s *fakeStorage) ExportText(_ context.Context, content, suggestedName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exportErr != nil {
		return "", s.exportErr
	}
	if s.exported == nil {
		s.exported = make(map[string]string)
	}
	s.exported[suggestedName] = content
	return filepath.Join("/exports", suggestedName), nil
}

func (s *fakeStorage) exportedNames() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.exported))
	for k, v := range s.exported {
		out[k] = v
	}
	return out
}

type fakeProber struct {
	ms  int64
	err error
}

func (p fakeProber) DurationMs(context.Context, string) (int64, error) {
	return p.ms, p.err
}

type harness struct {
	t           *testing.T
	store       *queue.Store
	manager     *workflow.Manager
	transcriber *fakeTranscriber
	storage     *fakeStorage
	dir         string
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		t:           t,
		store:       store,
		transcriber: &fakeTranscriber{},
		storage:     &fakeStorage{},
		dir:         testsupport.BaseDir(cfg),
	}
	base := []workflow.Option{workflow.WithModels(workflow.Models{Transcription: "pro", Initial: "flash"})}
	h.manager = workflow.NewManager(cfg, store, h.transcriber, h.storage, nil, append(base, opts...)...)
	t.Cleanup(h.manager.Wait)
	return h
}

func (h *harness) addJob(name string, settings queue.Settings) *queue.Job {
	h.t.Helper()
	path := filepath.Join(h.dir, "audio", name)
	testsupport.WriteFile(h.t, path, 128)
	job, err := h.manager.Add(context.Background(), path, settings)
	if err != nil {
		h.t.Fatalf("Add: %v", err)
	}
	return job
}

func (h *harness) run(id string) *queue.Job {
	h.t.Helper()
	job, err := h.manager.Run(context.Background(), id)
	if err != nil {
		h.t.Fatalf("Run: %v", err)
	}
	return job
}

func (h *harness) waitForStatus(id string, want queue.Status) *queue.Job {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := h.manager.Get(id); ok && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := h.manager.Get(id)
	h.t.Fatalf("job %s did not reach %s: %+v", id, want, job)
	return nil
}

func basicSettings() queue.Settings {
	return queue.Settings{MaxCharsPerSubtitle: 42, RemoveFillerWords: true}
}

func advancedSettings() queue.Settings {
	s := basicSettings()
	s.EnableAdvancedProcessing = true
	return s
}

func failWith(msg string) error {
	return fmt.Errorf("upstream: %s", msg)
}
