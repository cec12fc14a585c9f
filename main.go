package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/avolkov/procscope/cmd"
	"github.com/avolkov/procscope/internal/api"
	"github.com/avolkov/procscope/internal/config"
	"github.com/avolkov/procscope/internal/events"
	"github.com/avolkov/procscope/internal/logging"
	"github.com/avolkov/procscope/internal/metrics"
	"github.com/avolkov/procscope/internal/session"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Monitoring settings
	MonitorSampleIntervalMs  int  `help:"Resource sampling interval in milliseconds" default:"500" toml:"monitor.sample_interval_ms" env:"MONITOR_SAMPLE_INTERVAL_MS"`
	MonitorGracefulTimeoutMs int  `help:"Grace period before force-killing a tree, in milliseconds" default:"5000" toml:"monitor.graceful_timeout_ms" env:"MONITOR_GRACEFUL_TIMEOUT_MS"`
	MonitorZombieGraceMs     int  `help:"Delay before the post-exit leak scan, in milliseconds" default:"400" toml:"monitor.zombie_grace_ms" env:"MONITOR_ZOMBIE_GRACE_MS"`
	MonitorStderrTailLines   int  `help:"Stderr lines kept for the crash excerpt" default:"40" toml:"monitor.stderr_tail_lines" env:"MONITOR_STDERR_TAIL_LINES"`
	MetricsEnabled           bool `help:"Enable Prometheus metrics endpoint" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingPyenv   string `help:"Environment builder logging level" default:"info" toml:"logging.pyenv" env:"LOGGING_PYENV"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"session": opts.LoggingSession,
				"pyenv":   opts.LoggingPyenv,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		sessionCfg := session.DefaultConfig()
		sessionCfg.SampleInterval = time.Duration(opts.MonitorSampleIntervalMs) * time.Millisecond
		sessionCfg.GracefulTimeout = time.Duration(opts.MonitorGracefulTimeoutMs) * time.Millisecond
		sessionCfg.ZombieGrace = time.Duration(opts.MonitorZombieGraceMs) * time.Millisecond
		sessionCfg.StderrTailLines = opts.MonitorStderrTailLines

		manager, err := session.NewManager(sessionCfg)
		if err != nil {
			logger.Error("Failed to initialize process monitoring", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()

		// Feed new log entries to SSE subscribers
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		var m *metrics.Metrics
		if opts.MetricsEnabled {
			m = metrics.New()
		}
		manager.SetObserver(api.NewSessionObserver(eventBus, m))

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Manager:      manager,
			Bus:          eventBus,
		}
		if m != nil {
			apiOpts.PrometheusHandler = m.Handler()
		}
		server := api.NewServer(apiOpts)

		// Hot-reload logging levels when the config file changes
		watcher := config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
			return config.LoadLoggingConfig(path), nil
		}, logging.GetLogger("config"))
		watcher.OnReload(func(cfg logging.Config) {
			logger.Info("Config changed, applying logging levels")
			logging.ApplyLevels(cfg)
		})

		hooks.OnStart(func() {
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Debug("Config watcher not started", "error", watchErr)
			}
			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
		})
	})

	cli.Root().Use = "procscope"
	cli.Root().AddCommand(cmd.CreateRunCmd())

	cli.Run()
}
