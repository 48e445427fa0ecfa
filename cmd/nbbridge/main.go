// Command nbbridge runs the bridge between an embedding host and notebook
// document sessions, and manages its configuration and daemon process.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/nbbridge/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "nbbridge",
	Short:         "Message bridge between a host page and notebook sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config file path (.json or .yaml)")
}

func defaultConfigPath() string {
	if p := os.Getenv("NBBRIDGE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".nbbridge", "config.json")
}

// loadConfig loads the config at cfgPath or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
