// Package cmd hosts the promptsched CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "promptsched",
	Short: "Scheduled prompt execution engine",
	Long: `promptsched periodically fires stored user prompts against a
chat-completion backend, repairs malformed model output, persists the
resulting conversations, and notifies users in-app and over push.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(cronCmd())
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
