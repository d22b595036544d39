// Package gemini talks to the Gemini REST API: audio uploads through the
// Files API, content generation with optional Google Search grounding, and
// the prompts used by the transcription pipeline.
//
// The Client handles transport concerns (API key header, request throttling
// and retries of transient HTTP failures). Service layers the pipeline
// operations on top and satisfies the workflow Transcriber and FileStager
// interfaces.
package gemini
