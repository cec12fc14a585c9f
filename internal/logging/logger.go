package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 2000

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       *RingBuffer
	logCallback     LogCallback
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. Loggers created before Initialize
// are recreated with the full handler chain.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	if logBuffer == nil {
		logBuffer = NewRingBuffer(defaultBufferSize)
	}

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	globalLevelVar := &slog.LevelVar{}
	globalLevelVar.Set(parseLevel(config.Level))
	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// ApplyLevels updates log levels at runtime without recreating handlers.
// Used by the config watcher when the config file changes.
func ApplyLevels(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = config.Level
	globalConfig.Modules = config.Modules

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(globalConfig, module))
	}
}

// Buffer returns the log ring buffer for reading historical logs.
func Buffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback sets a callback invoked for each new log entry.
// Used for publishing log events to SSE clients.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Another goroutine may have created it between the two locks
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(moduleLevel(globalConfig, module))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// moduleLevel resolves the effective level for a module: module override
// first, global level otherwise.
func moduleLevel(config Config, module string) slog.Level {
	if levelStr, exists := config.Modules[module]; exists {
		if l, ok := tryParseLevel(levelStr); ok {
			return l
		}
	}
	return parseLevel(config.Level)
}

// createHandler builds the handler chain: stdout (text or json), systemd
// journal when available, and the ring buffer for the API log endpoints.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdoutHandler}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout{sinks: handlers}
}

// fanout delivers every record to each attached sink. It reports itself
// enabled if any sink is, so lowering one sink's level never silences
// the rest of the chain.
type fanout struct {
	sinks []slog.Handler
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range f.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := fanout{sinks: make([]slog.Handler, 0, len(f.sinks))}
	for _, s := range f.sinks {
		next.sinks = append(next.sinks, s.WithAttrs(attrs))
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := fanout{sinks: make([]slog.Handler, 0, len(f.sinks))}
	for _, s := range f.sinks {
		next.sinks = append(next.sinks, s.WithGroup(name))
	}
	return next
}

// parseLevel converts a string level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	if l, ok := tryParseLevel(level); ok {
		return l
	}
	return slog.LevelInfo
}

func tryParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
