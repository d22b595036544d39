package gemini

import (
	"fmt"
	"strings"
	"time"

	"subforge/internal/srt"
	"subforge/internal/workflow"
)

const topicAnalysisTemplate = `You are analyzing the transcript of an audio recording so that a later pass can spell its vocabulary correctly.

Use web search where it helps to identify the subject, people, organizations, products and jargon mentioned.

Respond in plain text with:
1. A short summary of what the recording is about.
2. The field or domain it belongs to.
3. Proper nouns and technical terms that appear or are likely to appear, with their correct spelling.

The first line of your response must be exactly:
%s <a short label for the main topic>

Transcript:
%s`

const dictionaryTemplate = `Build a spelling dictionary for transcribing audio about the topic described below.

Use web search to confirm the correct spelling of names, places, organizations, products and technical terms.

Output only CSV with the header row:
term,reading,category,notes

Rules:
- One term per row, no duplicates.
- "reading" is how the term sounds when spoken, or empty if obvious.
- Quote any field containing a comma.
- Do not wrap the CSV in code fences or add commentary.

Topic analysis:
%s`

const enhanceTemplate = `Rewrite the rough timestamped transcript below into a polished subtitle file in SRT format.

Requirements:
- Number subtitles sequentially starting at 1.
- Use timestamps formatted HH:MM:SS,mmm --> HH:MM:SS,mmm, taken from the transcript.
- Each subtitle block holds at most %d characters of text.
- Consecutive subtitles must not overlap and each must end after it starts.
%s
- Correct spellings using the dictionary. Prefer dictionary spellings over what the rough transcript says when they sound alike.
- Output only the SRT content inside a single code block marked srt.

Dictionary (CSV):
%s

Rough transcript:
%s`

// TopicAnalysisPrompt asks for a topic summary headed by a MainTopicMarker line.
func TopicAnalysisPrompt(transcript string) string {
	return fmt.Sprintf(topicAnalysisTemplate, workflow.MainTopicMarker, strings.TrimSpace(transcript))
}

// DictionaryPrompt asks for a CSV dictionary for the analyzed topic.
func DictionaryPrompt(topic string) string {
	return fmt.Sprintf(dictionaryTemplate, strings.TrimSpace(topic))
}

// EnhancePrompt asks for the final SRT built from an initial transcript.
func EnhancePrompt(transcript, dictionary string, maxChars int, speakers bool, durationMs int64) string {
	var extra []string
	if speakers {
		extra = append(extra, "- Prefix each line with the speaker label (for example \"Speaker 1:\") when the speaker changes.")
	} else {
		extra = append(extra, "- Do not add speaker labels.")
	}
	if durationMs > 0 {
		extra = append(extra, fmt.Sprintf("- The audio is %s long; no timestamp may exceed it.", srt.FormatTimestamp(time.Duration(durationMs)*time.Millisecond)))
	}
	dictionary = strings.TrimSpace(dictionary)
	if dictionary == "" {
		dictionary = "(none)"
	}
	return fmt.Sprintf(enhanceTemplate, maxChars, strings.Join(extra, "\n"), dictionary, strings.TrimSpace(transcript))
}
