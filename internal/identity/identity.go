// Package identity verifies the resolved AWS credentials before any
// resource is created. A failed STS call here means the run stops without
// touching EC2 or CloudFormation.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Caller holds the verified caller identity. AccountID also feeds the
// template staging bucket name.
type Caller struct {
	AccountID string
	ARN       string
}

// STSClient defines the subset of the STS API used for the credential
// preflight. This interface enables mock injection for testing.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var _ STSClient = (*sts.Client)(nil)

// Resolver resolves the current AWS caller identity.
type Resolver struct {
	client STSClient
}

// NewResolver creates a Resolver with the given STS client.
func NewResolver(client STSClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve calls STS GetCallerIdentity and returns the caller's account ID
// and ARN.
func (r *Resolver) Resolve(ctx context.Context) (*Caller, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("sts get-caller-identity: %w", err)
	}

	if out.Account == nil || out.Arn == nil {
		return nil, fmt.Errorf("sts get-caller-identity returned an incomplete response")
	}

	return &Caller{
		AccountID: *out.Account,
		ARN:       *out.Arn,
	}, nil
}
