// Package queue defines the durable job model and its persistence.
//
// The Store owns the canonical ordered job list and mirrors every mutation to
// a single JSON snapshot file using an atomic write-then-rename, so a crash
// mid-write never corrupts the previously valid snapshot. Callers receive
// copies of jobs and write mutations back through Update.
package queue
