// Package cmd holds the cobra subcommands of the procscope binary.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avolkov/procscope/internal/export"
	"github.com/avolkov/procscope/internal/logging"
	"github.com/avolkov/procscope/internal/session"
)

// CreateRunCmd creates the one-shot run command: launch a target,
// stream its output and metrics to the terminal, and exit with the
// target's exit code.
func CreateRunCmd() *cobra.Command {
	var (
		python          string
		workDir         string
		extraPaths      []string
		forceUTF8       bool
		csvPath         string
		reportPath      string
		sampleInterval  time.Duration
		gracefulTimeout time.Duration
		zombieGrace     time.Duration
		showMetrics     bool
		logJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "run [script] [args...]",
		Short: "Run a target program under monitoring",
		Long: `Launches the target program as a monitored subprocess, streams its ` +
			`stdout and stderr live, samples process-tree resources, and reports ` +
			`leaked descendants on exit. Ctrl-C triggers graceful-then-forceful ` +
			`termination of the whole tree.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("run")

			cfg := session.DefaultConfig()
			cfg.SampleInterval = sampleInterval
			cfg.GracefulTimeout = gracefulTimeout
			cfg.ZombieGrace = zombieGrace

			mgr, err := session.NewManager(cfg)
			if err != nil {
				logger.Error("Failed to initialize process monitoring", "error", err)
				os.Exit(1)
			}

			spec := session.LaunchSpec{
				Script:     args[0],
				Args:       args[1:],
				WorkDir:    workDir,
				ExtraPaths: extraPaths,
				Python:     python,
				ForceUTF8:  forceUTF8,
			}
			id, err := mgr.StartSession(spec)
			if err != nil {
				logger.Error("Invalid launch spec", "error", err)
				os.Exit(1)
			}

			stream, err := mgr.Events(id)
			if err != nil {
				logger.Error("Session vanished", "error", err)
				os.Exit(1)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigChan
				logger.Info("Received signal, stopping session", "signal", sig.String())
				mgr.Stop(id)
			}()
			defer signal.Stop(sigChan)

			recorder := export.NewRecorder()
			exitCode := consumeStream(stream, recorder, showMetrics, logger)

			if csvPath != "" {
				if err := recorder.SaveCSV(csvPath); err != nil {
					logger.Error("Failed to write metrics CSV", "path", csvPath, "error", err)
				} else {
					logger.Info("Metrics written", "path", csvPath)
				}
			}
			if reportPath != "" {
				if err := recorder.SaveReport(reportPath); err != nil {
					logger.Error("Failed to write report", "path", reportPath, "error", err)
				} else {
					logger.Info("Report written", "path", reportPath)
				}
			}

			if exitCode < 0 {
				exitCode = 1
			}
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&python, "python", "", "Interpreter to run the target with (default: auto-detect)")
	cmd.Flags().StringVar(&workDir, "workdir", "", "Working directory for the target (default: script directory)")
	cmd.Flags().StringArrayVar(&extraPaths, "extra-path", nil, "Extra search-path directory (repeatable)")
	cmd.Flags().BoolVar(&forceUTF8, "force-utf8", true, "Force UTF-8 I/O on the target")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write metric samples to this CSV file")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the session report to this file")
	cmd.Flags().DurationVar(&sampleInterval, "sample-interval", 500*time.Millisecond, "Resource sampling interval")
	cmd.Flags().DurationVar(&gracefulTimeout, "graceful-timeout", 5*time.Second, "Grace period before the tree is force-killed")
	cmd.Flags().DurationVar(&zombieGrace, "zombie-grace", 400*time.Millisecond, "Delay before the post-exit leak scan")
	cmd.Flags().BoolVar(&showMetrics, "show-metrics", false, "Print each resource sample to stderr")
	cmd.Flags().BoolVar(&logJSON, "json", false, "Log in JSON format")

	return cmd
}

// consumeStream relays session events to the terminal until the
// FinishedEvent and returns the child's exit code.
func consumeStream(stream <-chan session.Event, recorder *export.Recorder, showMetrics bool, logger *slog.Logger) int {
	exitCode := 1
	for ev := range stream {
		recorder.Observe(ev)
		switch e := ev.(type) {
		case session.StartedEvent:
			logger.Info("Target started", "pid", e.PID, "script", e.Script)
		case session.OutputEvent:
			if e.Chunk.Channel == "stderr" {
				fmt.Fprintln(os.Stderr, e.Chunk.Text)
			} else {
				fmt.Println(e.Chunk.Text)
			}
		case session.MetricsEvent:
			if showMetrics {
				fmt.Fprintf(os.Stderr, "[%.1fs] mem=%.1fMB cpu=%.1f%% threads=%d children=%d\n",
					e.Sample.Elapsed, e.Sample.MemoryMB, e.Sample.CPUPercent,
					e.Sample.Threads, e.Sample.Children)
			}
		case session.LogEvent:
			logger.Warn(e.Message)
		case session.FinishedEvent:
			exitCode = e.ExitCode
			logger.Info("Target finished", "exit_code", e.ExitCode)
			if len(e.ZombiePIDs) > 0 {
				logger.Warn("Leaked processes survived termination", "pids", e.ZombiePIDs)
			}
		}
	}
	return exitCode
}
