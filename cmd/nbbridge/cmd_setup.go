package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/nbbridge/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("nbbridge setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.HTTP.Listen = prompt(scanner, "Listen address", cfg.HTTP.Listen)

		origins := prompt(scanner, "Allowed host origins (comma separated)", strings.Join(cfg.HTTP.AllowedOrigins, ","))
		cfg.HTTP.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.HTTP.AllowedOrigins = append(cfg.HTTP.AllowedOrigins, o)
			}
		}

		cfg.Jupyter.BaseURL = prompt(scanner, "Jupyter server URL (optional)", cfg.Jupyter.BaseURL)
		cfg.Jupyter.Token = prompt(scanner, "Jupyter token (optional)", cfg.Jupyter.Token)

		interval := prompt(scanner, "Kernel keep-alive interval", cfg.Keepalive.Interval.String())
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Keepalive.Interval = config.Duration(d)
		} else {
			fmt.Printf("Ignoring invalid interval %q\n", interval)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt reads one line of input, returning defaultVal when it is blank.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
