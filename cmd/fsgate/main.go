package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ntufar/fsgate/internal/logger"
	"github.com/ntufar/fsgate/pkg/admission"
	"github.com/ntufar/fsgate/pkg/config"
	"github.com/ntufar/fsgate/pkg/facade"
	"github.com/ntufar/fsgate/pkg/metrics"
	"github.com/ntufar/fsgate/pkg/shutdown"
	"github.com/ntufar/fsgate/pkg/statestore"
	"github.com/ntufar/fsgate/pkg/streaming"
)

// version is stamped at build time via -ldflags "-X main.version=..."
var version = "dev"

// sweepInterval is how often the admission controller evicts idle
// identity records and blocks repeat offenders.
const sweepInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")
	initConfig := flag.Bool("init", false, "Write a default config file and exit")
	force := flag.Bool("force", false, "Overwrite an existing config file with --init")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fsgate %s\n", version)
		return
	}

	if *initConfig {
		path, err := config.InitConfig(*force)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fsgate: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsgate: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fsgate: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
		return
	}

	if err := setupLogging(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "fsgate: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("fsgate %s starting", version)
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Metrics (no-op collectors when disabled)
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
		logger.Info("Metrics server listening on port %d", metricsResult.Server.Port())
	}

	// Content repository
	repo, err := config.CreateContentRepository(ctx, &cfg.Content)
	if err != nil {
		logger.Error("Failed to create content repository: %v", err)
		os.Exit(1)
	}
	logger.Info("Content repository: %s", cfg.Content.Type)

	// Shutdown snapshot sink (nil when state.type is "none")
	sink, err := config.CreateStateSink(ctx, &cfg.State)
	if err != nil {
		logger.Error("Failed to create state sink: %v", err)
		os.Exit(1)
	}
	if sink != nil {
		logger.Info("State sink: %s", cfg.State.Type)
	}

	// Admission controller with configured rules
	ctrl := admission.NewController(cfg.AdmissionLimits(), cfg.AdmissionThrottle(), metricsResult.Admission)
	for _, rule := range cfg.AdmissionRules() {
		if err := ctrl.AddRule(rule); err != nil {
			logger.Error("Failed to add rate-limit rule %q: %v", rule.ID, err)
			os.Exit(1)
		}
		logger.Info("Rate-limit rule loaded: %s (priority %d)", rule.ID, rule.Priority)
	}
	go ctrl.RunSweeper(ctx, sweepInterval)

	// Streaming session manager and the request facade in front of both
	mgr := streaming.NewManager(repo, cfg.StreamingManagerConfig(), metricsResult.Streaming)
	gate := facade.New(ctrl, mgr, repo)

	orchestrator := buildOrchestrator(cfg, gate, ctrl, mgr, sink, metricsResult.Server)

	logger.Info("fsgate is running. Send SIGINT or SIGTERM to stop.")

	// Wait for a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigChan

	reason := fmt.Sprintf("signal: %s", sig)
	logger.Info("Shutdown signal received (%s), initiating graceful shutdown...", sig)

	if err := orchestrator.InitiateShutdown(reason); err != nil {
		logger.Error("Shutdown failed in phase %s: %v", orchestrator.Status().Phase, err)
		os.Exit(1)
	}

	cancel()
	logger.Info("Shutdown complete")
}

// setupLogging applies the logging section: level plus stdout, stderr,
// or a file path as the destination.
func setupLogging(cfg *config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)

	switch cfg.Output {
	case "stdout", "":
		// default
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(f)
	}
	return nil
}

// buildOrchestrator wires the shutdown sequence to the live components.
func buildOrchestrator(
	cfg *config.Config,
	gate *facade.Gate,
	ctrl *admission.Controller,
	mgr *streaming.Manager,
	sink statestore.Sink,
	metricsServer *metrics.Server,
) *shutdown.Orchestrator {
	deps := shutdown.Deps{
		Admission:       ctrl,
		Streams:         mgr,
		StopNewRequests: gate.StopAccepting,
		NotifyClients: func(reason string) {
			logger.Warn("Notifying clients of shutdown: %s", reason)
		},
		StateSink: sink,
		Snapshot: func() statestore.Snapshot {
			admStats := ctrl.Stats()
			streamStats := mgr.SessionStats()
			return statestore.Snapshot{
				Timestamp: time.Now(),
				Version:   version,
				Resources: statestore.ResourceStats{
					PendingOperations: admStats.ActiveRequests,
					ActiveSessions:    streamStats.Active,
					TrackedIdentities: admStats.TrackedIdentities,
					UnitsDelivered:    streamStats.UnitsDelivered,
				},
				Health: statestore.HealthStatus{
					Status: "shutting_down",
				},
			}
		},
	}

	if metricsServer != nil {
		deps.CloseConnections = func(ctx context.Context) error {
			return metricsServer.Stop(ctx)
		}
	}

	orchestrator := shutdown.New(cfg.ShutdownOrchestratorConfig(version), deps)

	if sink != nil {
		// Runs after the save-state phase; the sink must stay open
		// until its snapshot is written
		if err := orchestrator.RegisterHook(shutdown.Hook{
			Name:     "close-state-sink",
			Priority: -10,
			Run: func(ctx context.Context) error {
				return sink.Close()
			},
		}); err != nil {
			logger.Error("Failed to register state sink hook: %v", err)
		}
	}

	return orchestrator
}
