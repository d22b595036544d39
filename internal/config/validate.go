package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. A missing Gemini API key is
// not a validation failure because offline commands do not need it; callers
// that contact Gemini check HasAPIKey.
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" &&
		!strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateGemini() error {
	if err := ensurePositiveMap(map[string]int{
		"gemini.timeout_seconds":     c.Gemini.TimeoutSeconds,
		"gemini.retry_attempts":      c.Gemini.RetryAttempts,
		"gemini.requests_per_minute": c.Gemini.RequestsPerMinute,
		"gemini.file_poll_attempts":  c.Gemini.FilePollAttempts,
	}); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.Gemini.BaseURL, "https://") {
		return fmt.Errorf("gemini.base_url must be an http(s) URL, got %q", c.Gemini.BaseURL)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.MaxCharsPerSubtitle <= 0 {
		return errors.New("subtitles.max_chars_per_subtitle must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
