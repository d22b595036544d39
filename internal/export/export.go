// Package export writes generated subtitle and dictionary text to the
// configured export directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"subforge/internal/fileutil"
	"subforge/internal/logging"
	"subforge/internal/textutil"
)

// Exporter writes text artifacts under Dir without overwriting earlier exports.
type Exporter struct {
	Dir    string
	logger *slog.Logger
}

// New returns an Exporter rooted at dir.
func New(dir string, logger *slog.Logger) *Exporter {
	return &Exporter{Dir: dir, logger: logging.NewComponentLogger(logger, "export")}
}

// ExportText writes content as UTF-8 and returns the final path.
func (e *Exporter) ExportText(ctx context.Context, content, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(e.Dir) == "" {
		return "", errors.New("export: directory not configured")
	}
	if !utf8.ValidString(content) {
		return "", errors.New("export: content is not valid UTF-8")
	}
	name := textutil.SanitizeFileName(filepath.Base(suggestedName))
	if name == "" {
		name = "export.txt"
	}
	if !strings.HasSuffix(content, "\n") && content != "" {
		content += "\n"
	}

	path := fileutil.UniquePath(e.Dir, name)
	if err := fileutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	logging.WithContext(ctx, e.logger).Info("text exported",
		logging.String(logging.FieldEventType, "export_written"),
		logging.String("path", path),
		logging.Int("bytes", len(content)),
	)
	return path, nil
}
