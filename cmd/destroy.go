package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
	"github.com/ollamastack/ollamastack/internal/cli"
	"github.com/ollamastack/ollamastack/internal/config"
	"github.com/ollamastack/ollamastack/internal/deploy"
	"github.com/ollamastack/ollamastack/internal/identity"
	"github.com/ollamastack/ollamastack/internal/logging"
	"github.com/ollamastack/ollamastack/internal/progress"
)

// destroyDeps holds the injectable dependencies for the destroy command.
type destroyDeps struct {
	cfnDescribe ollamaaws.DescribeStacksAPI
	cfnDelete   ollamaaws.DeleteStackAPI
	sts         identity.STSClient
	auditor     logging.Auditor
}

// newDestroyCommand creates the production destroy command.
func newDestroyCommand() *cobra.Command {
	return newDestroyCommandWithDeps(nil)
}

// newDestroyCommandWithDeps creates the destroy command with explicit
// dependencies for testing.
func newDestroyCommandWithDeps(deps *destroyDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the stack and every resource it manages",
		Long: "Delete the CloudFormation stack. The EC2 instance, security group, " +
			"Elastic IP and DNS record it manages are removed with it. The key " +
			"pair and the saved private key are not touched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.ResolveConnection(connectionFlags(cmd))
			if err != nil {
				return err
			}
			if settings.StackName == "" {
				return errors.New("missing required settings: stack-name")
			}
			if deps != nil {
				return runDestroy(cmd, settings, deps)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := newAWSConfig(ctx, settings)
			if err != nil {
				return err
			}
			clients := newAWSClients(cfg)
			auditor, err := logging.NewAuditLogger(logging.DefaultAuditLogPath())
			if err != nil {
				auditor = logging.Nop()
			}
			defer auditor.Close()
			return runDestroy(cmd, settings, &destroyDeps{
				cfnDescribe: clients.cfnClient,
				cfnDelete:   clients.cfnClient,
				sts:         clients.stsClient,
				auditor:     auditor,
			})
		},
	}
	registerConnectionFlags(cmd)
	cmd.Flags().Duration("timeout", 0, "Bound the deletion poll (0 waits forever)")
	return cmd
}

// runDestroy confirms, then deletes the stack and waits for the deletion to
// complete.
func runDestroy(cmd *cobra.Command, settings *config.Settings, deps *destroyDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := cli.FromCommand(cmd)
	yes := cliCtx != nil && cliCtx.Yes
	w := cmd.OutOrStdout()

	caller, err := identity.NewResolver(deps.sts).Resolve(ctx)
	if err != nil {
		return fmt.Errorf("verify AWS credentials: %w", err)
	}

	fmt.Fprintf(w, "This will permanently delete stack %q and every resource it manages.\n", settings.StackName)

	// Confirmation: require the user to type the stack name unless --yes.
	if !yes {
		fmt.Fprintf(w, "Type the stack name %q to confirm: ", settings.StackName)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			return errors.New("no confirmation input received, destroy aborted")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != settings.StackName {
			return fmt.Errorf("confirmation %q does not match stack name %q, destroy aborted", input, settings.StackName)
		}
	}

	if deps.auditor != nil {
		_ = deps.auditor.LogCommand("destroy", settings.StackName, caller.ARN)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")

	sp := progress.NewCommandSpinner(w, false)
	sp.Start(fmt.Sprintf("Deleting stack %q...", settings.StackName))

	deployer := deploy.NewDeployer(nil, nil, deps.cfnDescribe).WithDeleteStack(deps.cfnDelete)
	err = deployer.Destroy(ctx, settings.StackName, timeout, sp.UpdateWriter())
	if err != nil {
		if errors.Is(err, deploy.ErrStackNotFound) {
			sp.Stop("")
			fmt.Fprintf(w, "Stack %q does not exist, nothing to delete.\n", settings.StackName)
			return nil
		}
		sp.Fail(err.Error())
		return err
	}
	sp.Stop("")

	fmt.Fprintf(w, "Stack %q deleted.\n", settings.StackName)
	return nil
}
