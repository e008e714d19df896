// Package workflow drives the queue: a single runner goroutine claims the
// oldest pending job, executes the transcription pipeline, and applies the
// retry policy. Jobs run strictly one at a time so a single machine's CPU
// and memory are never oversubscribed by the engine.
//
// The runner honors the persisted stop-after-current flag: when set, the
// in-flight job finishes normally and no further jobs are claimed until the
// flag is cleared.
package workflow
