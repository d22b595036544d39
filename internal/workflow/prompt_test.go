package workflow

import (
	"strings"
	"testing"

	"subforge/internal/queue"
)

func TestTranscriptionPromptEmbedsSettings(t *testing.T) {
	prompt := TranscriptionPrompt(queue.Settings{MaxCharsPerSubtitle: 30, EnableSpeakerDetection: true}, 3_723_004)
	for _, want := range []string{"at most 30 characters", "Speaker 1:", "filler words", "01:02:03,004"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Remove filler words") {
		t.Fatal("filler removal disabled but prompt asks for it")
	}
}

func TestTranscriptionPromptOmitsUnknownDuration(t *testing.T) {
	prompt := TranscriptionPrompt(queue.Settings{MaxCharsPerSubtitle: 42}, 0)
	if strings.Contains(prompt, "no timestamp may exceed") || strings.Contains(prompt, "Speaker 1") {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}
}

func TestParseMainTopic(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"MAIN_TOPIC: Chess\nmore", "Chess"},
		{"intro\n**MAIN_TOPIC:** Baking bread", "Baking bread"},
		{"## MAIN_TOPIC: Jazz history  ", "Jazz history"},
		{"no marker here", ""},
	}
	for _, tc := range cases {
		if got := ParseMainTopic(tc.in); got != tc.want {
			t.Fatalf("ParseMainTopic(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
