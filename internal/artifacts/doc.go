// Package artifacts renders the deliverables of a completed transcription:
// transcript.srt, transcript.txt, transcript.json, the per-job log, and the
// meta.json run summary written next to them.
package artifacts
