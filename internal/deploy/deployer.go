// Package deploy implements the stack deployment sequence: decide between
// create and update, submit the request, poll until the stack reaches a
// terminal status, and collect the output map on success.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
)

// pollInterval is the fixed delay between status queries while a stack
// operation is running.
const pollInterval = 10 * time.Second

// ErrStackNotFound is returned by Destroy and Outputs when the named stack
// does not exist.
var ErrStackNotFound = errors.New("stack does not exist")

// Options configures a Deploy call.
type Options struct {
	// StackName identifies the deployment. At most one live stack carries
	// this name.
	StackName string

	// Template is the resolved template source: either an inline body or an
	// S3 URL for bodies above the inline size limit.
	Template Source

	// Parameters are passed through to CloudFormation in order.
	Parameters []cftypes.Parameter

	// Timeout bounds the completion poll. Zero polls without a deadline.
	Timeout time.Duration

	// ProgressWriter receives one status line per poll iteration. May be
	// nil to suppress progress output.
	ProgressWriter io.Writer
}

// Deployer runs the create-or-update sequence against CloudFormation. All
// AWS dependencies are injected via narrow interfaces for testability.
type Deployer struct {
	cfnCreate   ollamaaws.CreateStackAPI
	cfnUpdate   ollamaaws.UpdateStackAPI
	cfnDescribe ollamaaws.DescribeStacksAPI
	cfnDelete   ollamaaws.DeleteStackAPI

	// pollInterval is overridable in tests to avoid real sleeps.
	pollInterval time.Duration
}

// NewDeployer constructs a Deployer with the required CloudFormation
// interfaces.
func NewDeployer(
	cfnCreate ollamaaws.CreateStackAPI,
	cfnUpdate ollamaaws.UpdateStackAPI,
	cfnDescribe ollamaaws.DescribeStacksAPI,
) *Deployer {
	return &Deployer{
		cfnCreate:    cfnCreate,
		cfnUpdate:    cfnUpdate,
		cfnDescribe:  cfnDescribe,
		pollInterval: pollInterval,
	}
}

// WithDeleteStack sets the DeleteStack client used by Destroy.
func (d *Deployer) WithDeleteStack(del ollamaaws.DeleteStackAPI) *Deployer {
	d.cfnDelete = del
	return d
}

// WithPollInterval overrides the status poll interval. Tests use this to
// avoid real sleeps.
func (d *Deployer) WithPollInterval(interval time.Duration) *Deployer {
	d.pollInterval = interval
	return d
}

// Deploy runs the full deployment sequence:
//  1. Check whether a stack with this name exists.
//  2. Route to UpdateStack or CreateStack accordingly. An update that
//     reports "No updates are to be performed" returns (nil, nil) without
//     polling — a recognized no-op, not a failure.
//  3. Poll the stack status at a fixed interval until it reaches a
//     terminal class.
//  4. Return the full output map on success, or an error naming the
//     terminal status on failure.
func (d *Deployer) Deploy(ctx context.Context, opts Options) (map[string]string, error) {
	exists, err := d.stackExists(ctx, opts.StackName)
	if err != nil {
		return nil, fmt.Errorf("check stack existence: %w", err)
	}

	if exists {
		progressf(opts.ProgressWriter, "Updating stack %q...", opts.StackName)
		noop, err := d.updateStack(ctx, opts)
		if err != nil {
			return nil, err
		}
		if noop {
			progressf(opts.ProgressWriter, "No updates to perform.")
			return nil, nil
		}
	} else {
		progressf(opts.ProgressWriter, "Creating stack %q...", opts.StackName)
		if err := d.createStack(ctx, opts); err != nil {
			return nil, err
		}
	}

	status, err := d.waitForTerminal(ctx, opts.StackName, opts.Timeout, opts.ProgressWriter)
	if err != nil {
		return nil, err
	}
	if ollamaaws.Classify(status) == ollamaaws.StatusFailed {
		return nil, fmt.Errorf("stack %q reached terminal status %s", opts.StackName, status)
	}

	return d.Outputs(ctx, opts.StackName)
}

// Outputs retrieves the output map of an existing stack. Values are passed
// through exactly as the provider reports them.
func (d *Deployer) Outputs(ctx context.Context, stackName string) (map[string]string, error) {
	out, err := d.cfnDescribe.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if ollamaaws.IsStackNotFound(err) {
			return nil, fmt.Errorf("stack %q: %w", stackName, ErrStackNotFound)
		}
		return nil, fmt.Errorf("describe stack outputs: %w", err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %q: %w", stackName, ErrStackNotFound)
	}

	outputs := make(map[string]string, len(out.Stacks[0].Outputs))
	for _, o := range out.Stacks[0].Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return outputs, nil
}

// Destroy deletes the named stack and polls until the deletion finishes.
// Requires a DeleteStack client set via WithDeleteStack.
func (d *Deployer) Destroy(ctx context.Context, stackName string, timeout time.Duration, progress io.Writer) error {
	if d.cfnDelete == nil {
		return fmt.Errorf("destroy is not configured with a DeleteStack client")
	}

	exists, err := d.stackExists(ctx, stackName)
	if err != nil {
		return fmt.Errorf("check stack existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("stack %q: %w", stackName, ErrStackNotFound)
	}

	progressf(progress, "Deleting stack %q...", stackName)
	if _, err := d.cfnDelete.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	}); err != nil {
		return fmt.Errorf("delete stack %q: %w", stackName, err)
	}

	status, err := d.waitForDeleted(ctx, stackName, timeout, progress)
	if err != nil {
		return err
	}
	if status != "" && ollamaaws.Classify(status) == ollamaaws.StatusFailed {
		return fmt.Errorf("stack %q reached terminal status %s", stackName, status)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Existence check
// ---------------------------------------------------------------------------

// stackExists queries for the named stack. A not-found-class error means
// the stack does not exist; any other error propagates to the caller.
func (d *Deployer) stackExists(ctx context.Context, stackName string) (bool, error) {
	out, err := d.cfnDescribe.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if ollamaaws.IsStackNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("describe stack %q: %w", stackName, err)
	}
	// A stack in DELETE_COMPLETE state is effectively gone.
	if len(out.Stacks) > 0 && out.Stacks[0].StackStatus == cftypes.StackStatusDeleteComplete {
		return false, nil
	}
	return len(out.Stacks) > 0, nil
}

// ---------------------------------------------------------------------------
// Create / update
// ---------------------------------------------------------------------------

// capabilities acknowledges that the stack template may create IAM
// resources, matching what its instance role requires.
var capabilities = []cftypes.Capability{
	cftypes.CapabilityCapabilityIam,
	cftypes.CapabilityCapabilityNamedIam,
}

func (d *Deployer) createStack(ctx context.Context, opts Options) error {
	input := &cloudformation.CreateStackInput{
		StackName:    aws.String(opts.StackName),
		Parameters:   opts.Parameters,
		Capabilities: capabilities,
	}
	if opts.Template.URL != "" {
		input.TemplateURL = aws.String(opts.Template.URL)
	} else {
		input.TemplateBody = aws.String(opts.Template.Body)
	}

	if _, err := d.cfnCreate.CreateStack(ctx, input); err != nil {
		return fmt.Errorf("create stack %q: %w", opts.StackName, err)
	}
	return nil
}

// updateStack submits an update. The returned bool is true when the
// provider reported that no updates were necessary.
func (d *Deployer) updateStack(ctx context.Context, opts Options) (bool, error) {
	input := &cloudformation.UpdateStackInput{
		StackName:    aws.String(opts.StackName),
		Parameters:   opts.Parameters,
		Capabilities: capabilities,
	}
	if opts.Template.URL != "" {
		input.TemplateURL = aws.String(opts.Template.URL)
	} else {
		input.TemplateBody = aws.String(opts.Template.Body)
	}

	if _, err := d.cfnUpdate.UpdateStack(ctx, input); err != nil {
		if ollamaaws.IsNoUpdates(err) {
			return true, nil
		}
		return false, fmt.Errorf("update stack %q: %w", opts.StackName, err)
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Polling
// ---------------------------------------------------------------------------

// waitForTerminal polls the stack status until it leaves the in-progress
// class. With timeout zero the loop runs until a terminal status appears or
// ctx is cancelled.
func (d *Deployer) waitForTerminal(ctx context.Context, stackName string, timeout time.Duration, progress io.Writer) (cftypes.StackStatus, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		out, err := d.cfnDescribe.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			return "", fmt.Errorf("poll stack status: %w", err)
		}
		if len(out.Stacks) == 0 {
			return "", fmt.Errorf("stack %q disappeared during polling", stackName)
		}

		status := out.Stacks[0].StackStatus
		if ollamaaws.Classify(status) != ollamaaws.StatusInProgress {
			progressf(progress, "Stack %s.", status)
			return status, nil
		}

		progressf(progress, "Stack status: %s... waiting", status)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for stack %q: %w", stackName, ctx.Err())
		case <-time.After(d.pollInterval):
		}
	}
}

// waitForDeleted polls until the stack is gone or reaches a terminal
// status. A not-found response counts as successful deletion, in which case
// the returned status is empty.
func (d *Deployer) waitForDeleted(ctx context.Context, stackName string, timeout time.Duration, progress io.Writer) (cftypes.StackStatus, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		out, err := d.cfnDescribe.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			if ollamaaws.IsStackNotFound(err) {
				progressf(progress, "Stack deleted.")
				return "", nil
			}
			return "", fmt.Errorf("poll stack status: %w", err)
		}
		if len(out.Stacks) == 0 {
			progressf(progress, "Stack deleted.")
			return "", nil
		}

		status := out.Stacks[0].StackStatus
		if status == cftypes.StackStatusDeleteComplete {
			progressf(progress, "Stack deleted.")
			return status, nil
		}
		if ollamaaws.Classify(status) == ollamaaws.StatusFailed {
			return status, nil
		}

		progressf(progress, "Stack status: %s... waiting", status)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for stack %q deletion: %w", stackName, ctx.Err())
		case <-time.After(d.pollInterval):
		}
	}
}

// progressf writes a formatted progress line when w is non-nil.
func progressf(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}
