package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/nbbridge/internal/state"
)

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentListCmd, documentCheckpointsCmd)
}

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Inspect stored notebooks",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored notebooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		infos, err := state.NewNotebookStore(cfg.DataDir).List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list notebooks: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No notebooks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Path, info.Size, info.LastModified.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var documentCheckpointsCmd = &cobra.Command{
	Use:   "checkpoints <path>",
	Short: "List the checkpoints of a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewCheckpointStore(cfg.DataDir, cfg.Checkpoints.Max)
		cps, err := store.List(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("list checkpoints: %w", err)
		}
		if len(cps) == 0 {
			fmt.Println("No checkpoints.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tDIGEST")
		for _, cp := range cps {
			fmt.Fprintf(w, "%s\t%s\t%s\n", cp.ID, cp.LastModified.Local().Format(time.DateTime), cp.Digest)
		}
		return w.Flush()
	},
}
