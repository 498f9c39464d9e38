// Package aws provides thin wrappers around AWS SDK clients used by
// ollamastack. This file defines narrow interfaces for the CloudFormation
// operations the stack deployer needs. Each interface wraps exactly one AWS
// SDK method, enabling mock injection in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
)

// ---------------------------------------------------------------------------
// CloudFormation stack management interfaces
// ---------------------------------------------------------------------------

// CreateStackAPI defines the subset of the CloudFormation API used for
// creating the Ollama stack when no deployment with that name exists yet.
type CreateStackAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
}

// UpdateStackAPI defines the subset of the CloudFormation API used for
// applying template or parameter changes to an already-deployed stack.
type UpdateStackAPI interface {
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// DescribeStacksAPI defines the subset of the CloudFormation API used for
// the stack existence check, completion polling, and output retrieval.
type DescribeStacksAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// DeleteStackAPI defines the subset of the CloudFormation API used by the
// destroy command to tear a deployed stack down.
type DeleteStackAPI interface {
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// ---------------------------------------------------------------------------
// Compile-time interface satisfaction checks
// ---------------------------------------------------------------------------

var (
	_ CreateStackAPI    = (*cloudformation.Client)(nil)
	_ UpdateStackAPI    = (*cloudformation.Client)(nil)
	_ DescribeStacksAPI = (*cloudformation.Client)(nil)
	_ DeleteStackAPI    = (*cloudformation.Client)(nil)
)
