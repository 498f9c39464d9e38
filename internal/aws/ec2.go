// Package aws provides thin wrappers around AWS SDK clients used by
// ollamastack. This file defines the EC2 interface for key pair creation.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// CreateKeyPairAPI defines the subset of the EC2 API used for requesting a
// new SSH key pair. The provider generates the key; the private material is
// returned once in the response and never again.
type CreateKeyPairAPI interface {
	CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error)
}

var _ CreateKeyPairAPI = (*ec2.Client)(nil)
