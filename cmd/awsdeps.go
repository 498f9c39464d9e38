// This file defines the shared AWS client construction used by the
// subcommands. Clients are built per command run because the credentials
// and region come from resolved flags, not the ambient environment alone.

package cmd

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ollamastack/ollamastack/internal/config"
)

// awsClients holds the SDK clients a command run needs, built once from the
// resolved settings.
type awsClients struct {
	cfnClient *cloudformation.Client
	ec2Client *ec2.Client
	s3Client  *s3.Client
	stsClient *sts.Client
}

// newAWSConfig builds an aws.Config from the resolved settings. Credentials
// always come from the settings via the static provider so that flag and
// environment precedence decided at resolve time is what the SDK sees.
func newAWSConfig(ctx context.Context, s *config.Settings) (aws.Config, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx,
		awscfg.WithRegion(s.Region),
		awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// newAWSClients constructs every SDK client from a loaded config.
func newAWSClients(cfg aws.Config) *awsClients {
	return &awsClients{
		cfnClient: cloudformation.NewFromConfig(cfg),
		ec2Client: ec2.NewFromConfig(cfg),
		s3Client:  s3.NewFromConfig(cfg),
		stsClient: sts.NewFromConfig(cfg),
	}
}
