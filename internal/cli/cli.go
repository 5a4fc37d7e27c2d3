// ============================================================================
// Superpy CLI - Operator Front-End
// ============================================================================
//
// Package: cli
// Purpose: Thin operator front-end over the scheduler/manager core
//
// Command Structure:
//   dispatchctl
//   ├── run          Start a scheduler and block until signaled
//   ├── submit       Submit one ad-hoc task and print its result
//   └── endpoints    List fleet endpoints and their last observed load
//
// Configuration Management:
//   --config / -c points at a YAML fleet roster (scheduler.Config).
//   Missing file -> scheduler.DefaultConfig(). There is no separate
//   validation pass here: scheduler.New rejects whatever it is handed.
//
// run:
//   Starts a Scheduler against the configured fleet, optionally spawns
//   and connects to a local endpoint (--local), optionally serves
//   Prometheus metrics (--metrics-port), then blocks on SIGINT/SIGTERM.
//   Example:
//     dispatchctl run --local --metrics-port 9090
//
// submit:
//   Submits one task via SubmitToBestServer and polls Refresh until
//   Finished or the polling window expires, killing the task if
//   --max-time is breached along the way.
//   Example:
//     dispatchctl submit --name resize-image --priority 5 --max-time 30s
//
// endpoints:
//   Prints every configured endpoint and its last observed load, or
//   "unreachable" if PeekLoad fails.
//
// Signal Handling:
//   run installs a signal.Notify on SIGINT/SIGTERM and blocks until one
//   arrives, then returns so the deferred sched.Close can run.
//
// Metrics Service:
//   When --metrics-port is nonzero, run starts metrics.StartServer in a
//   background goroutine; a failure there is logged, not fatal, since
//   the scheduler itself does not depend on metrics being reachable.
//
// Error Handling:
//   Every subcommand returns a wrapped error from RunE; cobra prints it
//   and cmd/dispatchctl/main.go turns it into a nonzero exit code.
//
// ============================================================================
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChuLiYu/superpy/internal/metrics"
	"github.com/ChuLiYu/superpy/internal/scheduler"
	"github.com/ChuLiYu/superpy/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configFile string

// BuildCLI assembles the dispatchctl root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "dispatchctl",
		Short:   "Operate a superpy task-dispatch fleet",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/dispatchctl.yaml", "fleet roster config file")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildSubmitCommand())
	rootCmd.AddCommand(buildEndpointsCommand())

	return rootCmd
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func loadConfig() (scheduler.Config, error) {
	if configFile == "" {
		return scheduler.DefaultConfig(), nil
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return scheduler.DefaultConfig(), nil
	}
	return scheduler.LoadConfig(configFile)
}

func buildRunCommand() *cobra.Command {
	var spawnLocal bool
	var metricsPort int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a scheduler against the configured fleet and block until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(spawnLocal, metricsPort)
		},
	}

	cmd.Flags().BoolVar(&spawnLocal, "local", false, "connect to (and spawn if necessary) the local endpoint")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")

	return cmd
}

func runScheduler(spawnLocal bool, metricsPort int) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	collector := metrics.NewCollector()
	if metricsPort != 0 {
		go func() {
			if err := metrics.StartServer(metricsPort); err != nil {
				logger.Warn().Err(err).Msg("metrics server exited")
			}
		}()
	}

	ctx := context.Background()
	sched, err := scheduler.New(ctx, cfg, logger, collector)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Close(ctx)

	if spawnLocal {
		if _, err := sched.ConnectToLocalServer(ctx); err != nil {
			return fmt.Errorf("connect to local endpoint: %w", err)
		}
		logger.Info().Msg("local endpoint is up")
	}

	logger.Info().Int("endpoints", len(cfg.Endpoints)).Msg("scheduler running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")
	return nil
}

func buildSubmitCommand() *cobra.Command {
	var name string
	var priority float64
	var payload string
	var maxTime time.Duration

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one ad-hoc task to the fleet and print its result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitOne(name, priority, payload, maxTime)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "task display name (required)")
	cmd.Flags().Float64Var(&priority, "priority", 0, "priority hint forwarded to the worker")
	cmd.Flags().StringVar(&payload, "payload", "", "opaque payload string forwarded to the worker")
	cmd.Flags().DurationVar(&maxTime, "max-time", 0, "per-task wall-clock budget (0 = infinite)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func submitOne(name string, priority float64, payload string, maxTime time.Duration) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	sched, err := scheduler.New(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Close(ctx)

	task := types.Task{Name: name, Priority: types.Priority(priority), Payload: payload}
	h, err := sched.SubmitToBestServer(ctx, task)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		h, err = h.Refresh(ctx, cfg.RefreshTimeout)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		status := h.Status()
		if status.Finished() {
			fmt.Printf("task %q finished: %v\n", name, status.Result)
			if err := h.Cleanup(ctx); err != nil {
				logger.Warn().Err(err).Msg("cleanup failed")
			}
			return nil
		}
		if maxTime > 0 && status.StartTime != nil && status.StartTime.Before(time.Now().Add(-maxTime)) {
			if err := h.Kill(ctx); err != nil {
				logger.Warn().Err(err).Msg("kill on timeout breach failed")
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("task %q did not finish within the polling window", name)
}

func buildEndpointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List fleet endpoints and their last observed load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEndpoints()
		},
	}
	return cmd
}

func listEndpoints() error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	sched, err := scheduler.New(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Close(ctx)

	hosts := sched.AllHosts(ctx)

	fmt.Println("\n╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║              Superpy Fleet Endpoint Status                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")

	if len(hosts) == 0 {
		fmt.Println("  └─ no endpoints configured")
		fmt.Println("═══════════════════════════════════════════════════════════")
		return nil
	}

	for i, key := range hosts {
		branch := "├─"
		if i == len(hosts)-1 {
			branch = "└─"
		}
		load, err := sched.PeekLoad(ctx, key.Host, key.Port)
		if err != nil {
			fmt.Printf("  %s ❌ %s\tunreachable (%v)\n", branch, key, err)
			continue
		}
		fmt.Printf("  %s ✅ %s\tload=%.2f\n", branch, key, load)
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
	return nil
}
