// Package logging provides slog-based structured logging for nightscribe.
// It standardizes handler construction (console or JSON, multi-destination
// output) and exposes attribute helpers plus shared field-name constants so
// log keys stay consistent across components.
package logging
