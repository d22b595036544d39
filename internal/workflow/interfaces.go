package workflow

import "context"

// FileRef identifies an audio file staged with the transcription backend.
type FileRef struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	MimeType    string `json:"mimeType"`
	DisplayName string `json:"displayName,omitempty"`
}

// EnhanceRequest carries the inputs of the final advanced transcription.
type EnhanceRequest struct {
	InitialTranscript      string
	Dictionary             string
	MaxCharsPerSubtitle    int
	EnableSpeakerDetection bool
	// DurationMs is zero when the audio duration is unknown.
	DurationMs int64
}

// Transcriber performs the remote language model calls of a pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, file FileRef, prompt, model string) (string, error)
	AnalyzeTopic(ctx context.Context, transcript string) (string, error)
	CreateDictionary(ctx context.Context, topic string) (string, error)
	Enhance(ctx context.Context, req EnhanceRequest) (string, error)
}

// FileStager uploads audio so the Transcriber can reference it.
type FileStager interface {
	StageFile(ctx context.Context, data []byte, name string) (FileRef, error)
}

// TextExporter writes generated text artifacts and returns where they went.
type TextExporter interface {
	ExportText(ctx context.Context, content, suggestedName string) (string, error)
}

// Storage combines staging and export.
type Storage interface {
	FileStager
	TextExporter
}

// DurationProber reports the length of an audio file in milliseconds.
type DurationProber interface {
	DurationMs(ctx context.Context, path string) (int64, error)
}

type storage struct {
	FileStager
	TextExporter
}

// NewStorage joins a stager and an exporter into a Storage.
func NewStorage(stager FileStager, exporter TextExporter) Storage {
	return storage{FileStager: stager, TextExporter: exporter}
}
