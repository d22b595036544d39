// Package workflow runs transcription jobs from an audio file to validated
// subtitles.
//
// The Manager owns the set of known jobs. Every mutation of a running job
// goes through Manager.update, which checks the job's run token, persists
// the new state to the queue store and publishes an Event to subscribers.
// A job runs one of two pipelines:
//
//   - basic: stage the audio, probe its duration, and ask the Transcriber
//     for subtitles in a single call.
//   - advanced: an initial transcript, a topic analysis, a spelling
//     dictionary and a final enhancement pass, each tracked as a stage.
//
// Any collaborator failure ends the run with the job in the error status.
// Output that fails SRT validation still completes the job; the validation
// report is kept and the parsed subtitles are withheld.
package workflow
