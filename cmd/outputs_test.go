package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/ollamastack/ollamastack/internal/cli"
)

func outputsArgs() []string {
	return []string{
		"--access-key", "AKIATEST",
		"--secret-key", "secret",
		"--region", "us-east-1",
		"--stack-name", "demo",
	}
}

func TestOutputsCommandPrintsOutputs(t *testing.T) {
	describe := &mockDescribeStacks{responses: []describeResponse{
		describeStatus(cftypes.StackStatusCreateComplete, map[string]string{
			"InstanceId": "i-0abc",
			"PublicIP":   "203.0.113.10",
			"WebURL":     "https://demo.example.com",
		}),
	}}

	buf := new(bytes.Buffer)
	cmd := newOutputsCommandWithDeps(&outputsDeps{cfnDescribe: describe})
	cmd.SetOut(buf)
	cmd.SetArgs(outputsArgs())

	if err := cmd.Execute(); err != nil {
		t.Fatalf("outputs returned error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		`Outputs of stack "demo":`,
		"InstanceId: i-0abc",
		"PublicIP: 203.0.113.10",
		"WebURL: https://demo.example.com",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q, got: %s", want, output)
		}
	}
}

func TestOutputsCommandJSON(t *testing.T) {
	describe := &mockDescribeStacks{responses: []describeResponse{
		describeStatus(cftypes.StackStatusCreateComplete, map[string]string{
			"PublicIP": "203.0.113.10",
		}),
	}}

	buf := new(bytes.Buffer)
	cmd := newOutputsCommandWithDeps(&outputsDeps{cfnDescribe: describe})
	cmd.SetOut(buf)
	cmd.SetContext(cli.WithContext(context.Background(), &cli.CLIContext{JSON: true}))
	cmd.SetArgs(outputsArgs())

	if err := cmd.Execute(); err != nil {
		t.Fatalf("outputs returned error: %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if result["PublicIP"] != "203.0.113.10" {
		t.Errorf("JSON outputs = %v", result)
	}
}

func TestOutputsCommandStackNotFound(t *testing.T) {
	describe := &mockDescribeStacks{responses: []describeResponse{
		{err: stackNotFoundErr("demo")},
	}}

	cmd := newOutputsCommandWithDeps(&outputsDeps{cfnDescribe: describe})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(outputsArgs())

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("error = %v, want stack-not-found", err)
	}
}

func TestOutputsCommandMissingStackName(t *testing.T) {
	cmd := newOutputsCommandWithDeps(&outputsDeps{cfnDescribe: &mockDescribeStacks{}})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"--access-key", "AKIATEST",
		"--secret-key", "secret",
		"--region", "us-east-1",
	})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "stack-name") {
		t.Fatalf("error = %v, want missing stack-name", err)
	}
}

func TestOutputsCommandNoOutputs(t *testing.T) {
	describe := &mockDescribeStacks{responses: []describeResponse{
		describeStatus(cftypes.StackStatusCreateComplete, nil),
	}}

	buf := new(bytes.Buffer)
	cmd := newOutputsCommandWithDeps(&outputsDeps{cfnDescribe: describe})
	cmd.SetOut(buf)
	cmd.SetArgs(outputsArgs())

	if err := cmd.Execute(); err != nil {
		t.Fatalf("outputs returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "has no outputs") {
		t.Errorf("missing no-outputs message, got: %s", buf.String())
	}
}
