package gemini

import (
	"context"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"subforge/internal/config"
	"subforge/internal/logging"
	"subforge/internal/services"
	"subforge/internal/workflow"
)

var audioMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".webm": "audio/webm",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
}

// MimeTypeFor returns the upload mime type for an audio file name.
func MimeTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := audioMimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// Models selects the model used by each pipeline call.
type Models struct {
	Analysis string
	Enhance  string
}

// Service implements the pipeline Transcriber and FileStager on top of Client.
type Service struct {
	client *Client
	models Models
	logger *slog.Logger
}

// NewService builds a Service from configuration.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	gem := cfg.Gemini
	clientOpts := append([]Option{WithRetryMaxAttempts(gem.RetryAttempts)}, opts...)
	client := NewClient(Config{
		APIKey:            gem.APIKey,
		BaseURL:           gem.BaseURL,
		TimeoutSeconds:    gem.TimeoutSeconds,
		RequestsPerMinute: gem.RequestsPerMinute,
		FilePollAttempts:  gem.FilePollAttempts,
		FilePollInterval:  time.Duration(gem.FilePollIntervalMS) * time.Millisecond,
	}, clientOpts...)
	return NewServiceWithClient(client, Models{Analysis: gem.AnalysisModel, Enhance: gem.Model}, logger)
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(client *Client, models Models, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		client: client,
		models: models,
		logger: logging.NewComponentLogger(logger, "gemini"),
	}
}

// StageFile uploads audio data and waits until Gemini has processed it.
func (s *Service) StageFile(ctx context.Context, data []byte, name string) (workflow.FileRef, error) {
	mimeType := MimeTypeFor(name)
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()

	file, err := s.client.UploadFile(ctx, data, filepath.Base(name), mimeType)
	if err != nil {
		return workflow.FileRef{}, services.Wrap(services.ErrExternalTool, "gemini", "upload", "upload audio file", err)
	}
	logger.Debug("audio uploaded",
		logging.String("file_name", file.Name),
		logging.String("state", file.State),
		logging.Int("bytes", len(data)),
	)
	if !strings.EqualFold(file.State, FileStateActive) {
		file, err = s.client.WaitForActive(ctx, file.Name)
		if err != nil {
			return workflow.FileRef{}, services.Wrap(services.ErrExternalTool, "gemini", "wait", "audio file processing", err)
		}
	}
	if file.MimeType != "" {
		mimeType = file.MimeType
	}
	logger.Info("audio staged",
		logging.String(logging.FieldEventType, "file_staged"),
		logging.String("file_name", file.Name),
		logging.Duration("elapsed", time.Since(start)),
	)
	return workflow.FileRef{Name: file.Name, URI: file.URI, MimeType: mimeType, DisplayName: file.DisplayName}, nil
}

// Transcribe generates text from an uploaded file and prompt.
func (s *Service) Transcribe(ctx context.Context, file workflow.FileRef, prompt, model string) (string, error) {
	gen, err := s.client.GenerateContent(ctx, model, []Part{
		FilePart(file.URI, file.MimeType),
		TextPart(prompt),
	}, false)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "gemini", "transcribe", "generate transcription", err)
	}
	s.logGeneration(ctx, "transcribe", model, gen)
	return gen.Text, nil
}

// AnalyzeTopic summarizes a transcript with search grounding.
func (s *Service) AnalyzeTopic(ctx context.Context, transcript string) (string, error) {
	gen, err := s.client.GenerateContent(ctx, s.models.Analysis, []Part{TextPart(TopicAnalysisPrompt(transcript))}, true)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "gemini", "analyze topic", "generate topic analysis", err)
	}
	s.logGeneration(ctx, "analyze_topic", s.models.Analysis, gen)
	return gen.Text, nil
}

// CreateDictionary produces a CSV dictionary for a topic analysis.
func (s *Service) CreateDictionary(ctx context.Context, topic string) (string, error) {
	gen, err := s.client.GenerateContent(ctx, s.models.Analysis, []Part{TextPart(DictionaryPrompt(topic))}, true)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "gemini", "create dictionary", "generate dictionary", err)
	}
	s.logGeneration(ctx, "create_dictionary", s.models.Analysis, gen)
	return stripFence(gen.Text), nil
}

// Enhance produces the final subtitles from an initial transcript.
func (s *Service) Enhance(ctx context.Context, req workflow.EnhanceRequest) (string, error) {
	prompt := EnhancePrompt(req.InitialTranscript, req.Dictionary, req.MaxCharsPerSubtitle, req.EnableSpeakerDetection, req.DurationMs)
	gen, err := s.client.GenerateContent(ctx, s.models.Enhance, []Part{TextPart(prompt)}, false)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "gemini", "enhance", "generate final subtitles", err)
	}
	s.logGeneration(ctx, "enhance", s.models.Enhance, gen)
	return gen.Text, nil
}

func (s *Service) logGeneration(ctx context.Context, op, model string, gen Generation) {
	attrs := []logging.Attr{
		logging.String("operation", op),
		logging.String("model", model),
		logging.String("finish_reason", gen.FinishReason),
		logging.Int("total_tokens", gen.Usage.TotalTokenCount),
		logging.Int("response_chars", len(gen.Text)),
	}
	if gen.SearchEntryPoint != "" || len(gen.SearchQueries) > 0 {
		attrs = append(attrs,
			logging.Bool("grounded", true),
			logging.Any("search_queries", gen.SearchQueries),
		)
	}
	logging.WithContext(ctx, s.logger).Debug("generation complete", logging.Args(attrs...)...)
}

// stripFence removes a surrounding code fence of any language.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return trimmed
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
