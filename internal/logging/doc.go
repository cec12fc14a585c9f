// Package logging provides structured logging built on log/slog.
//
// Loggers are created per module with GetLogger("session"), and each
// module's level can be set independently through the logging config
// (and changed at runtime via ApplyLevels, wired to the config watcher).
//
// Every record flows through a handler chain:
//   - stdout in text or json format
//   - the systemd journal, when running under systemd
//   - an in-memory ring buffer serving /api/logs and the log SSE stream
//
// The ring buffer keeps the most recent entries so API clients
// connecting mid-run still see history.
package logging
