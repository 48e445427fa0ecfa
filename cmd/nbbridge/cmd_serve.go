package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/nbbridge/internal/bridge"
	"github.com/user/nbbridge/internal/config"
	"github.com/user/nbbridge/internal/delivery"
	"github.com/user/nbbridge/internal/hostapi"
	"github.com/user/nbbridge/internal/jupyter"
	"github.com/user/nbbridge/internal/kernel"
	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/state"
	"github.com/user/nbbridge/internal/types"
)

const pidFileName = "nbbridge.pid"

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nbbridge daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFileName)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// serverInfoLogger resolves the host's server details against the Jupyter
// server and logs what it finds. Help links are resolved by the host.
func serverInfoLogger(cfg *config.Config, logger *slog.Logger) bridge.ServerInfoHandler {
	return func(ctx context.Context, info protocol.ServerOSInfo) error {
		logger.Info("host server details", "server_os", info.ServerOS, "is_portal", info.IsPortal)
		meta := jupyter.LookupServerInfo(ctx, cfg.Jupyter.BaseURL, cfg.Jupyter.Token, logger)
		if meta == nil {
			return nil
		}
		logger.Info("jupyter server", "base_url", cfg.Jupyter.BaseURL, "version", meta.Version)
		return nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	notebooks := state.NewNotebookStore(cfg.DataDir)
	checkpoints := state.NewCheckpointStore(cfg.DataDir, cfg.Checkpoints.Max)
	events := state.NewEventStore(cfg.DataDir)

	// Outbound delivery: live stream first, then the journal
	hub := hostapi.NewHub(cfg.Hub.History, logger)
	outbox := delivery.NewRegistry()
	outbox.Register("hub", hub.Deliver)
	outbox.Register("journal", delivery.Journal(events))

	var client *jupyter.Client
	if cfg.Jupyter.BaseURL != "" {
		client = jupyter.NewClient(cfg.Jupyter.BaseURL, cfg.Jupyter.Token)
	} else {
		logger.Warn("jupyter.base_url not set, keep-alive probes will fail")
	}

	registry := kernel.NewRegistry()
	var poller *kernel.Poller
	if cfg.Keepalive.Enabled {
		poller = kernel.NewPoller(registry, cfg.Keepalive.Interval.Std(), cfg.Keepalive.Timeout.Std(), logger)
	}

	policy := protocol.NewOriginPolicy(cfg.HTTP.AllowedOrigins)
	b, err := bridge.New(bridge.Options{
		Tracker:       notebook.NewTracker(notebooks, checkpoints),
		Outbox:        outbox,
		Registry:      registry,
		Poller:        poller,
		Policy:        policy,
		ServerInfo:    serverInfoLogger(cfg, logger),
		Logger:        logger,
		MaxConcurrent: int64(cfg.MaxConcurrent),
	})
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return err
	}
	defer b.Stop()

	srv := hostapi.NewServer(hostapi.Options{
		Bridge:  b,
		Hub:     hub,
		Journal: events,
		Policy:  policy,
		Kernels: func(id types.KernelID) types.Kernel { return jupyter.NewKernel(client, id) },
		Logger:  logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("host API listening", "listen", cfg.HTTP.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("host API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("nbbridge started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"keepalive", cfg.Keepalive.Enabled,
		"keepalive_interval", cfg.Keepalive.Interval.String(),
		"jupyter", cfg.Jupyter.BaseURL,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-gctx.Done():
			cancel()
			return g.Wait()
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					logger.Error("failed to get executable path", "error", err)
					continue
				}
				// Clean up PID file before re-exec
				os.Remove(pidPath)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					logger.Error("failed to re-exec", "error", err)
					if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
						logger.Error("failed to re-write PID file", "error", writeErr)
					}
				}
				continue
			}
			logger.Info("shutting down", "signal", sig.String())
			cancel()
			return g.Wait()
		}
	}
}
