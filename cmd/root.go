// Package cmd provides the CLI commands for ollamastack.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ollamastack/ollamastack/internal/cli"
)

// NewRootCommand creates and returns the root cobra command with all global
// persistent flags registered. Subcommands are attached here.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ollamastack",
		Short:         "Provision an EC2 instance running an Ollama LLM server",
		Long:          "Provision and manage a single EC2 instance running an Ollama LLM server behind nginx with HTTPS and basic auth, driven by a CloudFormation stack.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cli.NewCLIContext(cmd)
			cmd.SetContext(cli.WithContext(context.Background(), cliCtx))
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Show progress steps")
	rootCmd.PersistentFlags().Bool("debug", false, "Show AWS SDK details")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().Bool("yes", false, "Skip confirmation on destructive operations")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newOutputsCommand())
	rootCmd.AddCommand(newKeypairCommand())
	rootCmd.AddCommand(newDestroyCommand())

	return rootCmd
}

// Execute creates the root command and runs it. Called from main.
func Execute() error {
	return NewRootCommand().Execute()
}
