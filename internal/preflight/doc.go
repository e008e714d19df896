// Package preflight provides readiness checks for the binaries, paths, and
// credentials nightscribe depends on, plus per-file validation of transcription
// candidates.
//
// The checks run in two contexts:
//   - The daemon runs RunAll once at startup and refuses to start when a
//     required check fails, so a misconfigured host never burns hours on a
//     doomed queue.
//   - Enqueue paths (the CLI add command and the watch-folder scanner) call
//     ValidateCandidate per file before a job is created.
package preflight
