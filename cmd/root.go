package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the crmgate application
var rootCmd = &cobra.Command{
	Use:   "crmgate",
	Short: "Gateway between request-envelope clients and the Piperun CRM",
	Long: `crmgate exposes Piperun CRM operations (deals, pipelines, contacts and
more) behind a single request/response envelope.

It can run as:
  - A long-lived gateway over stdio, HTTP, WebSocket or MCP (serve)
  - A one-shot CLI that dispatches a single operation (call)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "crmgate version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
