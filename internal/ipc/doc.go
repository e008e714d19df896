// Package ipc exposes daemon control via JSON-RPC over a Unix domain
// socket. The CLI is the only intended client; requests and responses are
// small JSON DTOs so the daemon's internal types never leak across the
// socket boundary.
package ipc
