package srt

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:03,000
Hello world

2
00:00:03,000 --> 00:00:06,000
This is a test`

func TestParseSample(t *testing.T) {
	records := Parse(sampleSRT)
	want := []Record{
		{Index: 1, StartTime: "00:00:00,000", EndTime: "00:00:03,000", Text: "Hello world"},
		{Index: 2, StartTime: "00:00:03,000", EndTime: "00:00:06,000", Text: "This is a test"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("Parse mismatch:\n got %#v\nwant %#v", records, want)
	}
}

func TestGenerateSampleMatchesInput(t *testing.T) {
	got := Generate(Parse(sampleSRT))
	if strings.TrimRight(got, "\n") != sampleSRT {
		t.Fatalf("Generate did not reproduce input:\n%q", got)
	}
}

func TestParseGenerateRoundTrip(t *testing.T) {
	records := []Record{
		{Index: 1, StartTime: "00:00:01,000", EndTime: "00:00:02,500", Text: "First line\nsecond line"},
		{Index: 2, StartTime: "00:00:02,500", EndTime: "00:00:04,000", Text: "Speaker A: hi"},
		{Index: 3, StartTime: "101:00:00,000", EndTime: "101:00:01,001", Text: "こんにちは世界"},
		{Index: 4, StartTime: "101:00:02,000", EndTime: "101:00:03,000", Text: "trailing space "},
	}
	generated := Generate(records)
	parsed := Parse(generated)
	if !reflect.DeepEqual(parsed, records) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", parsed, records)
	}
	if again := Generate(parsed); again != generated {
		t.Fatalf("canonical form changed:\n%q\n%q", generated, again)
	}
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	input := "1\n00:00:00,000 --> 00:00:01,000\nok\n\n" +
		"two lines only\n00:00:01,000 --> 00:00:02,000\n\n" +
		"3\nnot a time range\ntext\n\n" +
		"x\n00:00:03,000 --> 00:00:04,000\ntext\n\n" +
		"5\n00:00:05,000 --> 00:00:06,000\nlast"
	records := Parse(input)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %#v", len(records), records)
	}
	if records[0].Index != 1 || records[1].Index != 5 {
		t.Fatalf("unexpected indices: %#v", records)
	}
}

func TestParseKeepsTrailingSpacesOnLastRecord(t *testing.T) {
	records := []Record{
		{Index: 1, StartTime: "00:00:00,000", EndTime: "00:00:01,000", Text: "a"},
		{Index: 2, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: "end "},
	}
	generated := Generate(records)
	if again := Generate(Parse(generated)); again != generated {
		t.Fatalf("round trip changed last record:\n%q\n%q", generated, again)
	}

	padded := "\n  \n" + generated + "  \n\n"
	got := Parse(padded)
	if len(got) != 2 || got[1].Text != "end " {
		t.Fatalf("unexpected parse of padded input: %#v", got)
	}
}

func TestParseHandlesCRLFAndEmpty(t *testing.T) {
	if got := Parse("   \n\n"); len(got) != 0 {
		t.Fatalf("expected no records, got %#v", got)
	}
	crlf := strings.ReplaceAll(sampleSRT, "\n", "\r\n")
	if got := Parse(crlf); len(got) != 2 || got[1].Text != "This is a test" {
		t.Fatalf("unexpected CRLF parse: %#v", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"00:00:01,500", 1500 * time.Millisecond, true},
		{"01:02:03,004", time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, true},
		{"00:00:01.250", 1250 * time.Millisecond, true},
		{"", 0, false},
		{"00:01,000", 0, false},
		{"aa:00:00,000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("ParseTimestamp(%q) expected error", tc.in)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(3*time.Hour + 4*time.Minute + 5*time.Second + 6*time.Millisecond); got != "03:04:05,006" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatTimestamp(-time.Second); got != "00:00:00,000" {
		t.Fatalf("negative duration should clamp, got %q", got)
	}
}
