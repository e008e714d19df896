// Package watchfolder discovers new recordings dropped into the configured
// folder and enqueues them exactly once.
//
// Discovery is polling-based so network mounts and editors that write
// without emitting events still work; fsnotify create events only shorten
// the wait between sweeps. Seen files are tracked by fingerprint (path,
// size, mtime), so an unchanged file is never re-admitted while a
// re-exported one is treated as new work.
package watchfolder
