package srt

import (
	"regexp"
	"strconv"
	"strings"
)

// Record is a single numbered subtitle block.
type Record struct {
	Index     int    `json:"index"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Text      string `json:"text"`
}

// timeRangePattern accepts loosely formatted timestamps so Validate can report
// the exact formatting defect instead of the block vanishing during Parse.
var timeRangePattern = regexp.MustCompile(`^(\d+:\d+:\d+[,.]\d+)\s*-->\s*(\d+:\d+:\d+[,.]\d+)$`)

var blockSeparator = regexp.MustCompile(`\n[ \t]*\n`)

// Parse splits text into subtitle records. Blocks with fewer than three lines,
// a non-numeric index, or an unrecognized time range line are skipped.
func Parse(text string) []Record {
	normalized := strings.Trim(normalizeNewlines(text), "\n")
	if strings.TrimSpace(normalized) == "" {
		return nil
	}
	blocks := blockSeparator.Split(normalized, -1)
	records := make([]Record, 0, len(blocks))
	for _, block := range blocks {
		record, ok := parseBlock(block)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

func parseBlock(block string) (Record, bool) {
	lines := trimBlankLines(strings.Split(block, "\n"))
	if len(lines) < 3 {
		return Record{}, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Record{}, false
	}
	match := timeRangePattern.FindStringSubmatch(strings.TrimSpace(lines[1]))
	if match == nil {
		return Record{}, false
	}
	return Record{
		Index:     index,
		StartTime: match[1],
		EndTime:   match[2],
		Text:      strings.Join(lines[2:], "\n"),
	}, true
}

// trimBlankLines drops whitespace-only lines at either end. Trailing spaces
// on text lines are kept.
func trimBlankLines(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Generate serializes records back into SRT text. Each block ends with a
// newline and blocks are separated by a blank line.
func Generate(records []Record) string {
	var b strings.Builder
	for i, record := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(record.Index))
		b.WriteByte('\n')
		b.WriteString(record.StartTime)
		b.WriteString(" --> ")
		b.WriteString(record.EndTime)
		b.WriteByte('\n')
		b.WriteString(record.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
