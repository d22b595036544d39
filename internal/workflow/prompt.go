package workflow

import (
	"fmt"
	"strings"

	"subforge/internal/queue"
	"subforge/internal/srt"
)

// MainTopicMarker prefixes the line of a topic analysis that names the main topic.
const MainTopicMarker = "MAIN_TOPIC:"

// TranscriptionPrompt builds the single-call prompt used by the basic pipeline.
func TranscriptionPrompt(settings queue.Settings, durationMs int64) string {
	var b strings.Builder
	b.WriteString("Transcribe this audio file and return subtitles in SRT format.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Number subtitles sequentially starting at 1.\n")
	b.WriteString("- Use timestamps formatted HH:MM:SS,mmm --> HH:MM:SS,mmm.\n")
	fmt.Fprintf(&b, "- Each subtitle block holds at most %d characters of text.\n", settings.MaxCharsPerSubtitle)
	b.WriteString("- Consecutive subtitles must not overlap and each must end after it starts.\n")
	if settings.EnableSpeakerDetection {
		b.WriteString("- Identify speakers and prefix lines with a label such as \"Speaker 1:\" when the speaker changes.\n")
	}
	if settings.RemoveFillerWords {
		b.WriteString("- Remove filler words (um, uh, like, you know) and false starts.\n")
	} else {
		b.WriteString("- Keep the speech verbatim, including filler words.\n")
	}
	if durationMs > 0 {
		fmt.Fprintf(&b, "- The audio is %s long; no timestamp may exceed it.\n", srt.FormatTimestamp(msDuration(durationMs)))
	}
	b.WriteString("\nOutput only the SRT content inside a single code block marked srt.")
	return b.String()
}

// InitialTranscriptPrompt asks for a rough timestamped transcript.
func InitialTranscriptPrompt(durationMs int64) string {
	var b strings.Builder
	b.WriteString("Transcribe this audio file verbatim as plain text.\n\n")
	b.WriteString("Start each utterance on a new line with its start and end time in the form ")
	b.WriteString("[HH:MM:SS,mmm --> HH:MM:SS,mmm] followed by the words spoken.\n")
	b.WriteString("Mark words you are unsure about with (?) instead of guessing silently.\n")
	if durationMs > 0 {
		fmt.Fprintf(&b, "The audio is %s long.\n", srt.FormatTimestamp(msDuration(durationMs)))
	}
	b.WriteString("Do not summarize, translate or add commentary.")
	return b.String()
}

// ParseMainTopic returns the label following MainTopicMarker, if any.
func ParseMainTopic(analysis string) string {
	for line := range strings.SplitSeq(analysis, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*#"))
		if rest, ok := strings.CutPrefix(line, MainTopicMarker); ok {
			return strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*"))
		}
	}
	return ""
}
