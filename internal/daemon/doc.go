// Package daemon coordinates the long-running nightscribe process.
//
// It wires configuration, the queue store, the workflow runner, and the
// watch-folder scanner into a single lifecycle with flock-based locking to
// prevent multiple instances from sharing one state file. The daemon owns
// the enqueue policy (preflight then store admission) used by both the CLI
// and the scanner, the operator controls (stop-after-current, resume, clear
// pending), and the restart reconciliation of jobs interrupted mid-run.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown, and coordination.
package daemon
