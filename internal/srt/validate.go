package srt

import (
	"fmt"
	"time"
)

// Validation is the outcome of a structural check of SRT text.
type Validation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Validate parses text and reports every structural problem found. It never
// stops at the first violation.
func Validate(text string) Validation {
	records := Parse(text)
	if len(records) == 0 {
		return Validation{IsValid: false, Errors: []string{"no valid subtitle records found"}}
	}

	errs := make([]string, 0)
	var (
		prevEnd     time.Duration
		prevEndText string
		havePrev    bool
	)
	for i, record := range records {
		position := i + 1
		if record.Index != position {
			errs = append(errs, fmt.Sprintf("record %d: expected index %d, got %d", position, position, record.Index))
		}
		startOK := IsTimestamp(record.StartTime)
		if !startOK {
			errs = append(errs, fmt.Sprintf("record %d: invalid start time format %q", position, record.StartTime))
		}
		endOK := IsTimestamp(record.EndTime)
		if !endOK {
			errs = append(errs, fmt.Sprintf("record %d: invalid end time format %q", position, record.EndTime))
		}

		start, startErr := ParseTimestamp(record.StartTime)
		end, endErr := ParseTimestamp(record.EndTime)
		if startErr == nil && endErr == nil && start >= end {
			errs = append(errs, fmt.Sprintf("record %d: start time %s is not before end time %s", position, record.StartTime, record.EndTime))
		}
		if startErr == nil && havePrev && start < prevEnd {
			errs = append(errs, fmt.Sprintf("record %d: start time %s overlaps previous end time %s", position, record.StartTime, prevEndText))
		}
		if endErr == nil {
			prevEnd = end
			prevEndText = record.EndTime
			havePrev = true
		} else {
			havePrev = false
		}
	}
	return Validation{IsValid: len(errs) == 0, Errors: errs}
}
