package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
	"github.com/ollamastack/ollamastack/internal/cli"
	"github.com/ollamastack/ollamastack/internal/config"
	"github.com/ollamastack/ollamastack/internal/keypair"
)

// keypairDeps holds the injectable dependencies for the keypair command.
type keypairDeps struct {
	ec2Keys ollamaaws.CreateKeyPairAPI
	now     func() time.Time
}

// newKeypairCommand creates the production keypair command.
func newKeypairCommand() *cobra.Command {
	return newKeypairCommandWithDeps(nil)
}

// newKeypairCommandWithDeps creates the keypair command with explicit
// dependencies for testing.
func newKeypairCommandWithDeps(deps *keypairDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keypair",
		Short: "Create an EC2 key pair and save the private key",
		Long: "Create a new EC2 key pair and write the private key to the save " +
			"path with owner-read-only permissions. Deploy does this automatically; " +
			"this command exists for creating a key pair on its own.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.ResolveConnection(connectionFlags(cmd))
			if err != nil {
				return err
			}
			if settings.KeyPairName == "" && settings.StackName == "" {
				return errors.New("missing required settings: keypair-name or stack-name")
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
				deps = &keypairDeps{
					ec2Keys: newAWSClients(cfg).ec2Client,
					now:     time.Now,
				}
			}
			return runKeypair(cmd, settings, deps)
		},
	}
	registerConnectionFlags(cmd)
	registerKeyPairFlags(cmd)
	return cmd
}

// runKeypair creates the key pair and reports where the private key landed.
func runKeypair(cmd *cobra.Command, settings *config.Settings, deps *keypairDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := cli.FromCommand(cmd)
	jsonOut := cliCtx != nil && cliCtx.JSON
	w := cmd.OutOrStdout()

	name := settings.KeyPairName
	if name == "" {
		name = keypair.GenerateName(settings.StackName, deps.now())
	}

	kp, err := keypair.NewProvisioner(deps.ec2Keys).Create(ctx, name, settings.KeyPairSavePath)
	if err != nil {
		return reportError(w, jsonOut, fmt.Errorf("create key pair: %w", err))
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"key_pair_name": kp.Name,
			"key_pair_path": kp.Path,
		})
	}
	fmt.Fprintf(w, "Created key pair %q, private key saved to %s\n", kp.Name, kp.Path)
	return nil
}
