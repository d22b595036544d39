package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGemini()
	if err := c.normalizeSubtitles(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv(GeminiAPIKeyEnv); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.Model = normalizeModel(c.Gemini.Model, defaultGeminiModel)
	c.Gemini.InitialModel = normalizeModel(c.Gemini.InitialModel, defaultGeminiInitialModel)
	c.Gemini.AnalysisModel = normalizeModel(c.Gemini.AnalysisModel, defaultGeminiAnalysisModel)
	if c.Gemini.FilePollIntervalMS <= 0 {
		c.Gemini.FilePollIntervalMS = defaultFilePollIntervalMS
	}
}

// normalizeModel strips the optional "models/" resource prefix.
func normalizeModel(value, fallback string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "models/")
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeSubtitles() error {
	c.Subtitles.CustomDictionary = strings.TrimSpace(c.Subtitles.CustomDictionary)
	if c.Subtitles.CustomDictionary == "" {
		return nil
	}
	expanded, err := expandPath(c.Subtitles.CustomDictionary)
	if err != nil {
		return fmt.Errorf("subtitles.custom_dictionary: %w", err)
	}
	c.Subtitles.CustomDictionary = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
