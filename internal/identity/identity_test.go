package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockSTS struct {
	output *sts.GetCallerIdentityOutput
	err    error
}

func (m *mockSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.output, m.err
}

func TestResolveSuccess(t *testing.T) {
	r := NewResolver(&mockSTS{
		output: &sts.GetCallerIdentityOutput{
			Account: aws.String("123456789012"),
			Arn:     aws.String("arn:aws:iam::123456789012:user/deployer"),
		},
	})

	caller, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.AccountID != "123456789012" {
		t.Errorf("AccountID = %q", caller.AccountID)
	}
	if caller.ARN != "arn:aws:iam::123456789012:user/deployer" {
		t.Errorf("ARN = %q", caller.ARN)
	}
}

func TestResolveAPIError(t *testing.T) {
	wantErr := errors.New("InvalidClientTokenId")
	r := NewResolver(&mockSTS{err: wantErr})

	_, err := r.Resolve(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error %v should wrap the STS error", err)
	}
}

func TestResolveIncompleteResponse(t *testing.T) {
	r := NewResolver(&mockSTS{
		output: &sts.GetCallerIdentityOutput{
			Arn: aws.String("arn:aws:iam::123456789012:user/deployer"),
		},
	})

	if _, err := r.Resolve(context.Background()); err == nil {
		t.Fatal("expected an error for a response without an account ID")
	}
}
