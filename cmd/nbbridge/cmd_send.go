package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/nbbridge/internal/protocol"
)

var (
	sendOrigin string
	sendRaw    bool
)

func init() {
	sendCmd.Flags().StringVar(&sendOrigin, "origin", "", "Origin header to present to the bridge")
	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "send the message argument as JSON instead of a string")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <messageType> [message]",
	Short: "Send a host message to the running daemon",
	Example: `  nbbridge send NotebookMessage 'print("hi")'
  nbbridge send NotebookSaveMessage`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		env := protocol.Envelope{MessageType: args[0]}
		if len(args) == 2 {
			if sendRaw {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("message is not valid JSON")
				}
				env.Message = json.RawMessage(args[1])
			} else {
				data, err := json.Marshal(args[1])
				if err != nil {
					return err
				}
				env.Message = data
			}
		}
		body, err := json.Marshal(env)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
			"http://"+cfg.HTTP.Listen+"/api/messages", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if sendOrigin != "" {
			req.Header.Set("Origin", sendOrigin)
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		defer resp.Body.Close()

		out, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("bridge returned %s: %s", resp.Status, bytes.TrimSpace(out))
		}
		fmt.Fprintf(os.Stdout, "Accepted %s\n", env.MessageType)
		return nil
	},
}
