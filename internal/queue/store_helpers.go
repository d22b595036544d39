package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"subforge/internal/srt"
	"subforge/internal/stages"
)

const jobColumns = "id, source_path, file_name, status, progress, result, error_message, settings_json, subtitles_json, validation_json, stages_json, dictionary, analyzed_topic, main_topic, duration_ms, run_token, subtitle_path, dictionary_path, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             string
		sourcePath     string
		fileName       string
		statusStr      string
		progress       sql.NullString
		result         sql.NullString
		errorMessage   sql.NullString
		settingsJSON   string
		subtitlesJSON  sql.NullString
		validationJSON sql.NullString
		stagesJSON     sql.NullString
		dictionary     sql.NullString
		analyzedTopic  sql.NullString
		mainTopic      sql.NullString
		durationMs     int64
		runToken       int64
		subtitlePath   sql.NullString
		dictionaryPath sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&fileName,
		&statusStr,
		&progress,
		&result,
		&errorMessage,
		&settingsJSON,
		&subtitlesJSON,
		&validationJSON,
		&stagesJSON,
		&dictionary,
		&analyzedTopic,
		&mainTopic,
		&durationMs,
		&runToken,
		&subtitlePath,
		&dictionaryPath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		SourcePath:     sourcePath,
		FileName:       fileName,
		Status:         Status(statusStr),
		Progress:       progress.String,
		Result:         result.String,
		Error:          errorMessage.String,
		Dictionary:     dictionary.String,
		AnalyzedTopic:  analyzedTopic.String,
		MainTopic:      mainTopic.String,
		DurationMs:     durationMs,
		RunToken:       uint64(runToken),
		SubtitlePath:   subtitlePath.String,
		DictionaryPath: dictionaryPath.String,
	}

	if err := json.Unmarshal([]byte(settingsJSON), &job.Settings); err != nil {
		return nil, fmt.Errorf("decode settings for job %s: %w", id, err)
	}
	if subtitlesJSON.Valid && subtitlesJSON.String != "" {
		var records []srt.Record
		if err := json.Unmarshal([]byte(subtitlesJSON.String), &records); err != nil {
			return nil, fmt.Errorf("decode subtitles for job %s: %w", id, err)
		}
		job.Subtitles = records
	}
	if validationJSON.Valid && validationJSON.String != "" {
		var validation srt.Validation
		if err := json.Unmarshal([]byte(validationJSON.String), &validation); err != nil {
			return nil, fmt.Errorf("decode validation for job %s: %w", id, err)
		}
		job.Validation = &validation
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		var states map[stages.Key]stages.State
		if err := json.Unmarshal([]byte(stagesJSON.String), &states); err != nil {
			return nil, fmt.Errorf("decode stages for job %s: %w", id, err)
		}
		job.Stages = stages.FromStates(states)
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

// jobArgs returns the column values for jobColumns in order.
func jobArgs(job *Job) ([]any, error) {
	settingsJSON, err := json.Marshal(job.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	subtitlesJSON, err := nullableJSON(job.Subtitles, len(job.Subtitles) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode subtitles: %w", err)
	}
	validationJSON, err := nullableJSON(job.Validation, job.Validation == nil)
	if err != nil {
		return nil, fmt.Errorf("encode validation: %w", err)
	}
	stagesJSON, err := nullableJSON(job.Stages, len(job.Stages) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode stages: %w", err)
	}
	return []any{
		job.ID,
		job.SourcePath,
		job.FileName,
		job.Status,
		nullableString(job.Progress),
		nullableString(job.Result),
		nullableString(job.Error),
		string(settingsJSON),
		subtitlesJSON,
		validationJSON,
		stagesJSON,
		nullableString(job.Dictionary),
		nullableString(job.AnalyzedTopic),
		nullableString(job.MainTopic),
		job.DurationMs,
		int64(job.RunToken),
		nullableString(job.SubtitlePath),
		nullableString(job.DictionaryPath),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func nullableJSON(value any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
