package logs

import (
	"encoding/json"
	"strings"
)

// Filter selects log lines by job ID and minimum level. It understands both
// the JSON format and the console format written by internal/logging.
type Filter struct {
	JobID    string
	MinLevel string
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Match reports whether line passes the filter. Lines whose level cannot be
// determined pass the level check.
func (f Filter) Match(line string) bool {
	jobID := strings.TrimSpace(f.JobID)
	minLevel := strings.ToUpper(strings.TrimSpace(f.MinLevel))
	if jobID == "" && minLevel == "" {
		return true
	}

	var record map[string]any
	isJSON := strings.HasPrefix(strings.TrimSpace(line), "{") && json.Unmarshal([]byte(line), &record) == nil

	if jobID != "" {
		if isJSON {
			if value, _ := record["job_id"].(string); value != jobID {
				return false
			}
		} else if !strings.Contains(line, jobID) {
			return false
		}
	}

	if want, ok := levelRank[minLevel]; ok {
		level := ""
		if isJSON {
			level, _ = record["level"].(string)
		} else {
			level = consoleLevel(line)
		}
		if got, known := levelRank[strings.ToUpper(level)]; known && got < want {
			return false
		}
	}
	return true
}

// consoleLevel reads the level from "<timestamp> <LEVEL> ..." lines.
func consoleLevel(line string) string {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
