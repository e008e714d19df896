// Package whisperx wraps the WhisperX CLI for transcription with speaker
// diarization.
//
// The service builds the full command line from per-job Options, runs the
// engine against a normalized WAV file, and parses the segment JSON it
// emits. Credentials passed via --hf_token are masked whenever a command
// line is rendered for logging.
package whisperx
