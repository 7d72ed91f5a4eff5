package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler with its HTTP API and gRPC health service",
	Long: `Start the Burrow scheduler.

Configuration is read from the YAML file given with --config; every key that
is absent keeps its default. The listen addresses and log settings can be
overridden with flags.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "", "Path to YAML configuration file")
	serveCmd.Flags().String("http-addr", "", "Override api.httpAddr")
	serveCmd.Flags().String("grpc-addr", "", "Override api.grpcAddr (empty in both disables gRPC)")
	serveCmd.Flags().String("data-dir", "", "Override storage.dataDir")
	serveCmd.Flags().String("storage", "", "Override storage.backend (memory, file, bolt)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyServeOverrides(cmd, cfg)

	// The config file only sets logging when the flags were left alone
	if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-json") {
		level, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: level, JSONOutput: cfg.Log.JSON})
	}
	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent("storage", true, cfg.Storage.Backend)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker.Subscribe())

	sched, err := scheduler.Open(cfg, scheduler.Deps{Store: store, Broker: broker})
	if err != nil {
		metrics.UpdateComponent("storage", false, err.Error())
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()
	metrics.RegisterComponent("scheduler", true, "running")
	logger.Info().
		Float64("max_memory_mb", cfg.MaxMemoryMB).
		Int("max_concurrent_tasks", cfg.MaxConcurrentTasks).
		Float64("tokens_per_hour", cfg.TokenBudgetPerHour).
		Float64("tokens_per_day", cfg.TokenBudgetPerDay).
		Str("storage", cfg.Storage.Backend).
		Msg("Scheduler started")

	collector := metrics.NewCollector(sched, cfg.RebalanceInterval)
	collector.Start()

	httpServer := api.NewServer(sched, api.Config{
		Addr:      cfg.API.HTTPAddr,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
	})

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var grpcServer *api.GRPCServer
	if cfg.API.GRPCAddr != "" {
		metrics.SetCriticalComponents(append(metrics.DefaultCriticalComponents, "grpc")...)
		grpcServer = api.NewGRPCServer(api.NewLimiter(cfg.API.RateLimit, cfg.API.RateBurst))
		grpcServer.SyncReadiness(5 * time.Second)
		go func() {
			if err := grpcServer.Start(cfg.API.GRPCAddr); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	fmt.Printf("✓ Burrow is serving on http://%s\n", cfg.API.HTTPAddr)
	if grpcServer != nil {
		fmt.Printf("✓ gRPC health service on %s\n", cfg.API.GRPCAddr)
	}
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop(ctx)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	collector.Stop()
	metrics.UpdateComponent("scheduler", false, "stopped")
	sched.Close()

	if runErr != nil {
		return runErr
	}
	fmt.Println("✓ Shutdown complete")
	return nil
}

func applyServeOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("http-addr"); v != "" {
		cfg.API.HTTPAddr = v
	}
	if cmd.Flags().Changed("grpc-addr") {
		cfg.API.GRPCAddr, _ = cmd.Flags().GetString("grpc-addr")
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("storage"); v != "" {
		cfg.Storage.Backend = v
	}
}

// logEvents mirrors lifecycle events into the debug log
func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for ev := range sub {
		logger.Debug().
			Str("type", string(ev.Type)).
			Str("task_id", ev.TaskID).
			Str("message", ev.Message).
			Msg("Event")
	}
}
