package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"subforge/internal/api"
	"subforge/internal/queue"
	"subforge/internal/textutil"
)

const fileColumnWidth = 40

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			textutil.Truncate(job.FileName, fileColumnWidth),
			job.Status,
			textutil.Truncate(job.Progress, 32),
			strconv.Itoa(job.SubtitleCount),
			formatTimestamp(job.CreatedAt),
		})
	}
	return rows
}

func formatTimestamp(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}

func jobStatusKind(status string) statusKind {
	parsed, ok := queue.ParseStatus(status)
	if !ok {
		return statusInfo
	}
	switch parsed {
	case queue.StatusCompleted:
		return statusOK
	case queue.StatusError:
		return statusError
	case queue.StatusProcessing:
		return statusWarn
	default:
		return statusInfo
	}
}

func renderJobDetail(w io.Writer, job api.Job, colorize bool) {
	lines := renderSectionHeader("Job "+job.ID, colorize)
	lines = append(lines,
		renderStatusLine("Status", jobStatusKind(job.Status), textutil.DisplayTitle(job.Status), colorize),
		renderValueLine("File", job.SourcePath),
	)
	if job.Progress != "" {
		lines = append(lines, renderValueLine("Progress", job.Progress))
	}
	if job.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, job.Error, colorize))
	}
	if job.DurationMs > 0 {
		lines = append(lines, renderValueLine("Duration", (time.Duration(job.DurationMs)*time.Millisecond).String()))
	}
	lines = append(lines,
		renderValueLine("Created", formatTimestamp(job.CreatedAt)),
		renderValueLine("Updated", formatTimestamp(job.UpdatedAt)),
	)

	s := job.Settings
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Settings", colorize)...)
	lines = append(lines,
		renderValueLine("Max chars", strconv.Itoa(s.MaxCharsPerSubtitle)),
		renderValueLine("Speakers", yesNo(s.EnableSpeakerDetection)),
		renderValueLine("Remove fillers", yesNo(s.RemoveFillerWords)),
		renderValueLine("Advanced", yesNo(s.EnableAdvancedProcessing)),
	)
	if s.CustomDictionary != "" {
		lines = append(lines, renderValueLine("Dictionary file", s.CustomDictionary))
	}

	if job.MainTopic != "" || job.SubtitlePath != "" || job.DictionaryPath != "" {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Output", colorize)...)
		if job.MainTopic != "" {
			lines = append(lines, renderValueLine("Topic", job.MainTopic))
		}
		if job.SubtitlePath != "" {
			lines = append(lines, renderValueLine("Subtitles", job.SubtitlePath))
		}
		if job.DictionaryPath != "" {
			lines = append(lines, renderValueLine("Dictionary", job.DictionaryPath))
		}
	}

	if job.Validation != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Validation", colorize)...)
		if job.Validation.IsValid {
			lines = append(lines, renderStatusLine("Subtitles", statusOK, fmt.Sprintf("%d records", job.SubtitleCount), colorize))
		} else {
			lines = append(lines, renderStatusLine("Subtitles", statusWarn, fmt.Sprintf("%d problems", len(job.Validation.Errors)), colorize))
			for _, msg := range job.Validation.Errors {
				lines = append(lines, statusIndent+statusIndent+msg)
			}
		}
	}

	fmt.Fprintln(w, strings.Join(lines, "\n"))

	if len(job.Stages) > 0 {
		rows := make([][]string, 0, len(job.Stages))
		for _, stage := range job.Stages {
			detail := stage.Error
			if detail == "" {
				detail = textutil.Truncate(stage.Result, 48)
			}
			rows = append(rows, []string{stage.Name, stage.Status, detail})
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, renderTable([]string{"Stage", "Status", "Detail"}, rows, nil))
	}
}
