// Command caller is a terminal client for the front desk service. It can
// place a call and chat with the agent, or act as the supervisor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:          "caller",
	Short:        "Terminal caller and supervisor client for the front desk service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FRONTDESK_URL", "http://localhost:3000"), "front desk server base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("FRONTDESK_API_KEY"), "supervisor API key (X-API-Key)")

	rootCmd.AddCommand(chatCmd, pendingCmd, historyCmd, resolveCmd, learnedCmd, exportCmd, hashKeyCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
