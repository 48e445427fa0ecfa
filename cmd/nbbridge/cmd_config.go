package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/user/nbbridge/internal/config"
)

var (
	listJSON    bool
	listSecrets bool
)

func init() {
	configListCmd.Flags().BoolVar(&listJSON, "json", false, "print the nested configuration as JSON")
	configListCmd.Flags().BoolVar(&listSecrets, "show-secrets", false, "print credentials unmasked")
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective configuration values, env overrides included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.ListValues(loadConfig(), !listSecrets)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(config.Unflatten(values))
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "%s = %v\n", k, values[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		val, err := config.GetValue(cfgPath, key)
		if err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			val = config.MaskSecrets(map[string]any{key: val})[key]
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one value in the config file",
	Long: `Store one value in the config file. Values that parse as JSON are stored
typed, so lists are written as  nbbridge config set http.allowed_origins '["https://host.example"]'.
The resulting file must still validate; the daemon picks it up on restart.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}
		if _, err := config.Load(cfgPath); err != nil {
			return fmt.Errorf("config now invalid: %w", err)
		}
		if config.IsSecretKey(key) {
			value = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, cfgPath)
	},
}
