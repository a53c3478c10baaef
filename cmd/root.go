package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gmail-sender application
var rootCmd = &cobra.Command{
	Use:   "gmail-sender",
	Short: "MCP server that sends emails and creates drafts through Gmail",
	Long: `gmail-sender is a Model Context Protocol (MCP) server that lets AI
assistants send emails and create drafts in the user's Gmail account.

It speaks MCP over stdio and runs a small local listener that completes the
one-time Google OAuth consent.`,
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
	rootCmd.SetVersionTemplate(`{{printf "gmail-sender version %s\n" .Version}}`)

	// MCP clients launch the binary without arguments
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
