// Package e2e_test contains end-to-end workflow tests for the ollamastack
// CLI. The stack orchestration pipeline runs in-process against stub AWS
// clients implementing the narrow interfaces from internal/aws; no real AWS
// calls are made. Commands without AWS dependencies (version, help) run
// through the real cmd.NewRootCommand().
package e2e_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	"github.com/ollamastack/ollamastack/cmd"
	"github.com/ollamastack/ollamastack/internal/deploy"
	"github.com/ollamastack/ollamastack/internal/keypair"
)

// ---------------------------------------------------------------------------
// Stub AWS clients
// ---------------------------------------------------------------------------

type stubCreateStack struct {
	lastInput *cloudformation.CreateStackInput
}

func (s *stubCreateStack) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	s.lastInput = params
	return &cloudformation.CreateStackOutput{StackId: aws.String("stack-id-e2e")}, nil
}

type stubUpdateStack struct {
	err    error
	called bool
}

func (s *stubUpdateStack) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return &cloudformation.UpdateStackOutput{StackId: aws.String("stack-id-e2e")}, nil
}

// stubDescribeStacks replays canned responses in order, repeating the last.
type stubDescribeStacks struct {
	responses []describeResponse
	idx       int
}

type describeResponse struct {
	out *cloudformation.DescribeStacksOutput
	err error
}

func (s *stubDescribeStacks) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	i := s.idx
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.idx++
	r := s.responses[i]
	return r.out, r.err
}

type stubDeleteStack struct {
	called bool
}

func (s *stubDeleteStack) DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	s.called = true
	return &cloudformation.DeleteStackOutput{}, nil
}

type stubCreateKeyPair struct {
	material string
}

func (s *stubCreateKeyPair) CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error) {
	return &ec2.CreateKeyPairOutput{
		KeyName:     params.KeyName,
		KeyMaterial: aws.String(s.material),
	}, nil
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func notFound(name string) describeResponse {
	return describeResponse{err: &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "Stack with id " + name + " does not exist",
	}}
}

func withStatus(status cftypes.StackStatus, outputs map[string]string) describeResponse {
	stack := cftypes.Stack{
		StackName:   aws.String("e2e-stack"),
		StackStatus: status,
	}
	for k, v := range outputs {
		stack.Outputs = append(stack.Outputs, cftypes.Output{
			OutputKey:   aws.String(k),
			OutputValue: aws.String(v),
		})
	}
	return describeResponse{out: &cloudformation.DescribeStacksOutput{
		Stacks: []cftypes.Stack{stack},
	}}
}

func keyMaterial(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

// ---------------------------------------------------------------------------
// Workflows
// ---------------------------------------------------------------------------

// TestWorkflow_ProvisionAndInspect walks the full first-run sequence: create
// a key pair, create the stack, poll to CREATE_COMPLETE, then fetch outputs
// again the way the outputs command does.
func TestWorkflow_ProvisionAndInspect(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// Key pair first, as deploy does.
	name := keypair.GenerateName("e2e-stack", time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	if name != "e2e-stack-2024050114-keypair" {
		t.Fatalf("generated name = %q", name)
	}
	kp, err := keypair.NewProvisioner(&stubCreateKeyPair{material: keyMaterial(t)}).Create(ctx, name, dir)
	if err != nil {
		t.Fatalf("create key pair: %v", err)
	}
	if kp.Path != filepath.Join(dir, name+".pem") {
		t.Errorf("key path = %q", kp.Path)
	}

	create := &stubCreateStack{}
	update := &stubUpdateStack{}
	describe := &stubDescribeStacks{responses: []describeResponse{
		notFound("e2e-stack"),
		withStatus(cftypes.StackStatusCreateInProgress, nil),
		withStatus(cftypes.StackStatusCreateComplete, map[string]string{
			"InstanceId": "i-e2e",
			"PublicIP":   "198.51.100.7",
		}),
	}}

	deployer := deploy.NewDeployer(create, update, describe).WithPollInterval(time.Millisecond)
	progress := new(bytes.Buffer)
	outputs, err := deployer.Deploy(ctx, deploy.Options{
		StackName:      "e2e-stack",
		Template:       deploy.Source{Body: "{}"},
		Timeout:        5 * time.Second,
		ProgressWriter: progress,
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if outputs["PublicIP"] != "198.51.100.7" {
		t.Errorf("outputs = %v", outputs)
	}
	if update.called {
		t.Error("update must not run on first provision")
	}
	if create.lastInput == nil || aws.ToString(create.lastInput.StackName) != "e2e-stack" {
		t.Errorf("create input = %+v", create.lastInput)
	}
	if !strings.Contains(progress.String(), "CREATE_IN_PROGRESS") {
		t.Errorf("progress log missing poll line, got: %s", progress.String())
	}

	// Inspect again, the way the outputs command does.
	got, err := deployer.Outputs(ctx, "e2e-stack")
	if err != nil {
		t.Fatalf("outputs: %v", err)
	}
	if got["InstanceId"] != "i-e2e" {
		t.Errorf("outputs = %v", got)
	}
}

// TestWorkflow_RedeployNoChanges runs a second deploy against an unchanged
// stack and expects the recognized no-op, with no polling at all.
func TestWorkflow_RedeployNoChanges(t *testing.T) {
	ctx := context.Background()

	describe := &stubDescribeStacks{responses: []describeResponse{
		withStatus(cftypes.StackStatusCreateComplete, nil),
	}}
	update := &stubUpdateStack{err: &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "No updates are to be performed.",
	}}

	deployer := deploy.NewDeployer(&stubCreateStack{}, update, describe)
	outputs, err := deployer.Deploy(ctx, deploy.Options{
		StackName: "e2e-stack",
		Template:  deploy.Source{Body: "{}"},
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if outputs != nil {
		t.Errorf("no-op deploy must return nil outputs, got %v", outputs)
	}
	if describe.idx != 1 {
		t.Errorf("DescribeStacks calls = %d, want 1 (no polling)", describe.idx)
	}
}

// TestWorkflow_ProvisionThenDestroy covers the teardown path: a live stack
// is deleted and polled until gone.
func TestWorkflow_ProvisionThenDestroy(t *testing.T) {
	ctx := context.Background()

	describe := &stubDescribeStacks{responses: []describeResponse{
		withStatus(cftypes.StackStatusCreateComplete, nil),
		withStatus(cftypes.StackStatusDeleteInProgress, nil),
		notFound("e2e-stack"),
	}}
	del := &stubDeleteStack{}

	deployer := deploy.NewDeployer(&stubCreateStack{}, &stubUpdateStack{}, describe).
		WithDeleteStack(del).
		WithPollInterval(time.Millisecond)
	if err := deployer.Destroy(ctx, "e2e-stack", 5*time.Second, nil); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if !del.called {
		t.Error("expected DeleteStack call")
	}

	// A second destroy finds nothing.
	describe.responses = []describeResponse{notFound("e2e-stack")}
	describe.idx = 0
	err := deployer.Destroy(ctx, "e2e-stack", 5*time.Second, nil)
	if !errors.Is(err, deploy.ErrStackNotFound) {
		t.Fatalf("second destroy error = %v, want ErrStackNotFound", err)
	}
}

// TestWorkflow_FailedProvisionSurfacesStatus drives a create that rolls back
// and checks the terminal status lands in the error text.
func TestWorkflow_FailedProvisionSurfacesStatus(t *testing.T) {
	ctx := context.Background()

	describe := &stubDescribeStacks{responses: []describeResponse{
		notFound("e2e-stack"),
		withStatus(cftypes.StackStatusCreateInProgress, nil),
		withStatus(cftypes.StackStatusRollbackComplete, nil),
	}}

	deployer := deploy.NewDeployer(&stubCreateStack{}, &stubUpdateStack{}, describe).
		WithPollInterval(time.Millisecond)
	_, err := deployer.Deploy(ctx, deploy.Options{
		StackName: "e2e-stack",
		Template:  deploy.Source{Body: "{}"},
		Timeout:   5 * time.Second,
	})
	if err == nil || !strings.Contains(err.Error(), "ROLLBACK_COMPLETE") {
		t.Fatalf("error = %v, want terminal status in message", err)
	}
}

// TestWorkflow_VersionCheck runs the real command tree end to end for a
// command with no AWS dependencies.
func TestWorkflow_VersionCheck(t *testing.T) {
	buf := new(bytes.Buffer)
	root := cmd.NewRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(buf.String(), "ollamastack version:") {
		t.Errorf("version output = %s", buf.String())
	}
}
