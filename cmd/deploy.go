package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/spf13/cobra"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
	"github.com/ollamastack/ollamastack/internal/cli"
	"github.com/ollamastack/ollamastack/internal/config"
	"github.com/ollamastack/ollamastack/internal/deploy"
	"github.com/ollamastack/ollamastack/internal/identity"
	"github.com/ollamastack/ollamastack/internal/keypair"
	"github.com/ollamastack/ollamastack/internal/logging"
	"github.com/ollamastack/ollamastack/internal/progress"
)

// deployDeps holds the injectable dependencies for the deploy command.
type deployDeps struct {
	cfnCreate   ollamaaws.CreateStackAPI
	cfnUpdate   ollamaaws.UpdateStackAPI
	cfnDescribe ollamaaws.DescribeStacksAPI
	ec2Keys     ollamaaws.CreateKeyPairAPI
	templates   ollamaaws.TemplateBucketAPI
	sts         identity.STSClient
	auditor     logging.Auditor
	now         func() time.Time
}

// deployJSON is the machine-readable result of a deploy run.
type deployJSON struct {
	StackName   string            `json:"stack_name"`
	KeyPairName string            `json:"key_pair_name"`
	KeyPairPath string            `json:"key_pair_path"`
	NoChanges   bool              `json:"no_changes,omitempty"`
	Outputs     map[string]string `json:"outputs,omitempty"`
	SSHCommand  string            `json:"ssh_command,omitempty"`
	WebURL      string            `json:"web_url,omitempty"`
}

// newDeployCommand creates the production deploy command. Real AWS clients
// are constructed at run time from the resolved settings.
func newDeployCommand() *cobra.Command {
	return newDeployCommandWithDeps(nil)
}

// newDeployCommandWithDeps creates the deploy command with explicit
// dependencies for testing.
func newDeployCommandWithDeps(deps *deployDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the Ollama stack",
		Long: "Create a new EC2 key pair, then create or update the CloudFormation " +
			"stack that runs the Ollama server. Prints the SSH command and HTTPS " +
			"endpoint when the stack reaches a successful terminal state.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Resolve(deployFlags(cmd))
			if err != nil {
				return err
			}
			if deps != nil {
				return runDeploy(cmd, settings, deps)
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
			return runDeploy(cmd, settings, &deployDeps{
				cfnCreate:   clients.cfnClient,
				cfnUpdate:   clients.cfnClient,
				cfnDescribe: clients.cfnClient,
				ec2Keys:     clients.ec2Client,
				templates:   clients.s3Client,
				sts:         clients.stsClient,
				auditor:     auditor,
				now:         time.Now,
			})
		},
	}
	registerDeployFlags(cmd)
	return cmd
}

// registerDeployFlags adds every flag the deploy settings understand.
func registerDeployFlags(cmd *cobra.Command) {
	registerConnectionFlags(cmd)
	registerKeyPairFlags(cmd)
	cmd.Flags().String("instance-type", "", "EC2 instance type for the Ollama server")
	cmd.Flags().String("hosted-zone-id", "", "Route 53 hosted zone ID for the HTTPS endpoint")
	cmd.Flags().String("hosted-zone-name", "", "Route 53 hosted zone name, e.g. example.com")
	cmd.Flags().String("basic-auth-username", "", "Username for nginx basic auth")
	cmd.Flags().String("basic-auth-password", "", "Password for nginx basic auth")
	cmd.Flags().String("template", "", "Path to a CloudFormation template overriding the built-in one")
	cmd.Flags().Duration("timeout", 0, "Bound the stack completion poll (0 waits forever)")
}

// registerConnectionFlags adds the credential, region and stack flags shared
// by every stack-facing command.
func registerConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("access-key", "", "AWS access key ID (falls back to AWS_ACCESS_KEY_ID)")
	cmd.Flags().String("secret-key", "", "AWS secret access key (falls back to AWS_SECRET_ACCESS_KEY)")
	cmd.Flags().String("region", "", "AWS region (falls back to AWS_REGION)")
	cmd.Flags().String("stack-name", "", "CloudFormation stack name")
}

// registerKeyPairFlags adds the key-pair naming flags used by the commands
// that create a key pair.
func registerKeyPairFlags(cmd *cobra.Command) {
	cmd.Flags().String("keypair-name", "", "EC2 key pair name (generated from the stack name when empty)")
	cmd.Flags().String("keypair-save-path", "", "Directory the private key is written to (default current directory)")
}

// deployFlags collects the deploy command's flag values.
func deployFlags(cmd *cobra.Command) config.Flags {
	f := connectionFlags(cmd)
	f.InstanceType, _ = cmd.Flags().GetString("instance-type")
	f.HostedZoneID, _ = cmd.Flags().GetString("hosted-zone-id")
	f.HostedZoneName, _ = cmd.Flags().GetString("hosted-zone-name")
	f.BasicAuthUser, _ = cmd.Flags().GetString("basic-auth-username")
	f.BasicAuthPassword, _ = cmd.Flags().GetString("basic-auth-password")
	f.TemplatePath, _ = cmd.Flags().GetString("template")
	f.PollTimeout, _ = cmd.Flags().GetDuration("timeout")
	return f
}

// connectionFlags collects the shared connection flag values.
func connectionFlags(cmd *cobra.Command) config.Flags {
	var f config.Flags
	f.AccessKey, _ = cmd.Flags().GetString("access-key")
	f.SecretKey, _ = cmd.Flags().GetString("secret-key")
	f.Region, _ = cmd.Flags().GetString("region")
	f.StackName, _ = cmd.Flags().GetString("stack-name")
	f.KeyPairName, _ = cmd.Flags().GetString("keypair-name")
	f.KeyPairSavePath, _ = cmd.Flags().GetString("keypair-save-path")
	return f
}

// runDeploy executes the deploy flow: identity preflight, key pair creation,
// template resolution, stack create-or-update, output reporting.
func runDeploy(cmd *cobra.Command, settings *config.Settings, deps *deployDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := cli.FromCommand(cmd)
	jsonOut := cliCtx != nil && cliCtx.JSON
	w := cmd.OutOrStdout()

	caller, err := identity.NewResolver(deps.sts).Resolve(ctx)
	if err != nil {
		return reportError(w, jsonOut, fmt.Errorf("verify AWS credentials: %w", err))
	}
	if deps.auditor != nil {
		// Audit failures never block the deploy.
		_ = deps.auditor.LogCommand("deploy", settings.StackName, caller.ARN)
	}

	keyName := settings.KeyPairName
	if keyName == "" {
		keyName = keypair.GenerateName(settings.StackName, deps.now())
	}
	kp, err := keypair.NewProvisioner(deps.ec2Keys).Create(ctx, keyName, settings.KeyPairSavePath)
	if err != nil {
		return reportError(w, jsonOut, fmt.Errorf("create key pair: %w", err))
	}
	if !jsonOut {
		fmt.Fprintf(w, "Created key pair %q, private key saved to %s\n", kp.Name, kp.Path)
	}

	body, err := deploy.ReadTemplate(settings.TemplatePath)
	if err != nil {
		return reportError(w, jsonOut, err)
	}
	var stager *deploy.Stager
	if deps.templates != nil {
		stager = deploy.NewStager(deps.templates, settings.Region, caller.AccountID)
	}
	source, err := stager.Resolve(ctx, settings.StackName, body)
	if err != nil {
		return reportError(w, jsonOut, fmt.Errorf("resolve template: %w", err))
	}

	sp := progress.NewCommandSpinner(w, jsonOut)
	sp.Start(fmt.Sprintf("Deploying stack %q...", settings.StackName))

	deployer := deploy.NewDeployer(deps.cfnCreate, deps.cfnUpdate, deps.cfnDescribe)
	outputs, err := deployer.Deploy(ctx, deploy.Options{
		StackName:      settings.StackName,
		Template:       source,
		Parameters:     stackParameters(settings, kp.Name),
		Timeout:        settings.PollTimeout,
		ProgressWriter: sp.UpdateWriter(),
	})
	if err != nil {
		sp.Fail(err.Error())
		return reportError(w, jsonOut, err)
	}
	sp.Stop("")

	result := deployJSON{
		StackName:   settings.StackName,
		KeyPairName: kp.Name,
		KeyPairPath: kp.Path,
		NoChanges:   outputs == nil,
		Outputs:     outputs,
	}
	if ip := outputs["PublicIP"]; ip != "" {
		result.SSHCommand = fmt.Sprintf("ssh -i %s ubuntu@%s", kp.Path, ip)
		result.WebURL = webURL(settings.StackName, settings.HostedZoneName)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.NoChanges {
		fmt.Fprintf(w, "Stack %q is already up to date.\n", settings.StackName)
		return nil
	}
	fmt.Fprintf(w, "Stack %q deployed.\n", settings.StackName)
	printOutputs(w, outputs)
	if result.SSHCommand != "" {
		fmt.Fprintf(w, "SSH command: %s\n", result.SSHCommand)
		fmt.Fprintf(w, "Web address: %s\n", result.WebURL)
	}
	return nil
}

// stackParameters maps the resolved settings onto the template parameters.
func stackParameters(s *config.Settings, keyPairName string) []cftypes.Parameter {
	param := func(key, value string) cftypes.Parameter {
		return cftypes.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		}
	}
	return []cftypes.Parameter{
		param("Region", s.Region),
		param("HostedZoneId", s.HostedZoneID),
		param("HostedZoneName", s.HostedZoneName),
		param("InstanceType", s.InstanceType),
		param("KeyPairName", keyPairName),
		param("SubdomainName", s.StackName),
		param("BasicAuthUser", s.BasicAuthUser),
		param("BasicAuthPassword", s.BasicAuthPassword),
	}
}

// webURL builds the HTTPS endpoint from the stack name and hosted zone.
// Route 53 zone names often carry a trailing dot; strip it.
func webURL(stackName, zoneName string) string {
	return fmt.Sprintf("https://%s.%s", stackName, strings.TrimSuffix(zoneName, "."))
}

// printOutputs writes the stack outputs one per line. The known keys print
// first in a fixed order, anything else follows sorted by name.
func printOutputs(w io.Writer, outputs map[string]string) {
	known := []string{"InstanceId", "PublicIP", "WebURL"}
	for _, key := range known {
		if v, ok := outputs[key]; ok {
			fmt.Fprintf(w, "  %s: %s\n", key, v)
		}
	}
	var rest []string
	for key := range outputs {
		if !slices.Contains(known, key) {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(w, "  %s: %s\n", key, outputs[key])
	}
}

// reportError prints the error as JSON when machine-readable output is
// requested, then signals a silent failure so main does not print it twice.
func reportError(w io.Writer, jsonOut bool, err error) error {
	if !jsonOut {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": err.Error()})
	return silentExitError{}
}
