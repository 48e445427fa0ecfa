package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var errNotRunning = errors.New("no running daemon")

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd, statusCmd)
}

// daemonPID returns the PID recorded in dataDir if that process is alive.
func daemonPID(dataDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, pidFileName))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w (PID file not found)", errNotRunning)
	}
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	// Signal 0 checks existence without delivering anything.
	if err := syscall.Kill(pid, 0); err != nil {
		return 0, fmt.Errorf("%w (process %d not found)", errNotRunning, pid)
	}
	return pid, nil
}

func signalCommand(use, short string, sig syscall.Signal, name, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := daemonPID(loadConfig().DataDir)
			if err != nil {
				return err
			}
			if err := syscall.Kill(pid, sig); err != nil {
				return fmt.Errorf("send %s: %w", name, err)
			}
			fmt.Fprintf(os.Stdout, "Sent %s to daemon (PID %d)%s.\n", name, pid, done)
			return nil
		},
	}
}

var (
	stopCmd    = signalCommand("stop", "Stop the running daemon", syscall.SIGTERM, "SIGTERM", "")
	restartCmd = signalCommand("restart", "Restart the running daemon in place", syscall.SIGHUP, "SIGHUP", " for restart")
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running and answering",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		pid, err := daemonPID(cfg.DataDir)
		if err != nil {
			return err
		}
		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get("http://" + cfg.HTTP.Listen + "/health")
		if err != nil {
			fmt.Fprintf(os.Stdout, "Daemon running (PID %d) but host API unreachable: %v\n", pid, err)
			return nil
		}
		resp.Body.Close()
		fmt.Fprintf(os.Stdout, "Daemon running (PID %d), host API on %s: %s\n", pid, cfg.HTTP.Listen, resp.Status)
		return nil
	},
}
