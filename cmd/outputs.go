package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
	"github.com/ollamastack/ollamastack/internal/cli"
	"github.com/ollamastack/ollamastack/internal/config"
	"github.com/ollamastack/ollamastack/internal/deploy"
)

// outputsDeps holds the injectable dependencies for the outputs command.
type outputsDeps struct {
	cfnDescribe ollamaaws.DescribeStacksAPI
}

// newOutputsCommand creates the production outputs command.
func newOutputsCommand() *cobra.Command {
	return newOutputsCommandWithDeps(nil)
}

// newOutputsCommandWithDeps creates the outputs command with explicit
// dependencies for testing.
func newOutputsCommandWithDeps(deps *outputsDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the outputs of a deployed stack",
		Long:  "Fetch and print the CloudFormation outputs (instance ID, public IP, web URL) of an already deployed stack.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.ResolveConnection(connectionFlags(cmd))
			if err != nil {
				return err
			}
			if settings.StackName == "" {
				return errors.New("missing required settings: stack-name")
			}
			if deps == nil {
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				cfg, err := newAWSConfig(ctx, settings)
				if err != nil {
					return err
				}
				deps = &outputsDeps{cfnDescribe: newAWSClients(cfg).cfnClient}
			}
			return runOutputs(cmd, settings, deps)
		},
	}
	registerConnectionFlags(cmd)
	return cmd
}

// runOutputs fetches and prints the stack outputs.
func runOutputs(cmd *cobra.Command, settings *config.Settings, deps *outputsDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := cli.FromCommand(cmd)
	jsonOut := cliCtx != nil && cliCtx.JSON
	w := cmd.OutOrStdout()

	deployer := deploy.NewDeployer(nil, nil, deps.cfnDescribe)
	outputs, err := deployer.Outputs(ctx, settings.StackName)
	if err != nil {
		if errors.Is(err, deploy.ErrStackNotFound) {
			err = fmt.Errorf("stack %q does not exist", settings.StackName)
		}
		return reportError(w, jsonOut, err)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outputs)
	}
	if len(outputs) == 0 {
		fmt.Fprintf(w, "Stack %q has no outputs.\n", settings.StackName)
		return nil
	}
	fmt.Fprintf(w, "Outputs of stack %q:\n", settings.StackName)
	printOutputs(w, outputs)
	return nil
}
