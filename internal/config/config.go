package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ExportDir string `toml:"export_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Gemini contains connection and model settings for the Gemini API.
type Gemini struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	Model              string `toml:"model"`
	InitialModel       string `toml:"initial_model"`
	AnalysisModel      string `toml:"analysis_model"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	RetryAttempts      int    `toml:"retry_attempts"`
	RequestsPerMinute  int    `toml:"requests_per_minute"`
	FilePollAttempts   int    `toml:"file_poll_attempts"`
	FilePollIntervalMS int    `toml:"file_poll_interval_ms"`
}

// Subtitles holds the default job settings applied to newly accepted files.
type Subtitles struct {
	MaxCharsPerSubtitle      int    `toml:"max_chars_per_subtitle"`
	EnableSpeakerDetection   bool   `toml:"enable_speaker_detection"`
	RemoveFillerWords        bool   `toml:"remove_filler_words"`
	EnableAdvancedProcessing bool   `toml:"enable_advanced_processing"`
	CustomDictionary         string `toml:"custom_dictionary"`
}

// Media contains external tool settings used for audio inspection.
type Media struct {
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Notifications configures ntfy push messages for finished daemon jobs. An
// empty NtfyTopic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyOnFailure       bool   `toml:"notify_on_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for subforge.
//
// Configuration sections by subsystem:
//   - Paths: data, export, and log directories plus the API bind address
//   - Gemini: credentials, model selection, retry and throttling
//   - Subtitles: default job settings
//   - Media: ffprobe location for duration probing
//   - Notifications: ntfy topic for finished jobs
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Gemini        Gemini        `toml:"gemini"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Media         Media         `toml:"media"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadEnvFiles(EnvPath(resolvedPath), ".env"); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnvPath returns the .env file that accompanies the given config file.
func EnvPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".env")
}

// loadEnvFiles loads existing .env files without overriding variables that are
// already set in the process environment.
func loadEnvFiles(paths ...string) error {
	existing := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			existing = append(existing, abs)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// SaveAPIKey stores the Gemini API key in the .env file at envPath, keeping
// any other variables already present.
func SaveAPIKey(envPath, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("api key cannot be empty")
	}
	values := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		existing, err := godotenv.Read(envPath)
		if err != nil {
			return fmt.Errorf("read env file: %w", err)
		}
		values = existing
	}
	values[GeminiAPIKeyEnv] = apiKey
	if err := os.MkdirAll(filepath.Dir(envPath), 0o700); err != nil {
		return fmt.Errorf("create env directory: %w", err)
	}
	if err := godotenv.Write(values, envPath); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return os.Chmod(envPath, 0o600)
}

// DeleteAPIKey removes the Gemini API key from the .env file at envPath.
// A missing file is not an error.
func DeleteAPIKey(envPath string) error {
	if _, err := os.Stat(envPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	values, err := godotenv.Read(envPath)
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	delete(values, GeminiAPIKeyEnv)
	if err := godotenv.Write(values, envPath); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ExportDir, c.Paths.LogDir, c.UploadDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the job history database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// UploadDir returns where audio uploaded through the HTTP API is stored.
func (c *Config) UploadDir() string {
	return filepath.Join(c.Paths.DataDir, "uploads")
}

// LockPath returns the location of the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "subforge.lock")
}

// LogFilePath returns the location of the daemon log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "subforge.log")
}

// FFprobeBinary returns the ffprobe executable used for duration probing.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Media.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Media.FFprobeBinary
}

// HasAPIKey reports whether Gemini credentials are configured.
func (c *Config) HasAPIKey() bool {
	return c != nil && strings.TrimSpace(c.Gemini.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
