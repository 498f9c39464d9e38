package deploy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
)

// maxInlineTemplateBytes is the CloudFormation limit for TemplateBody on
// CreateStack and UpdateStack. Larger documents must be referenced by URL.
const maxInlineTemplateBytes = 51200

// Source is the resolved template location: either an inline body or an S3
// URL for bodies above the inline limit. Exactly one field is set.
type Source struct {
	Body string
	URL  string
}

// ReadTemplate returns the template body to deploy. A non-empty path reads
// that file; otherwise the embedded stack template is used. The document is
// consumed opaquely and passed through unmodified.
func ReadTemplate(path string) (string, error) {
	if path == "" {
		return stackTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return string(data), nil
}

// Stager stages oversized template bodies in a per-account S3 bucket so
// they can be submitted as a TemplateURL.
type Stager struct {
	client ollamaaws.TemplateBucketAPI
	region string

	// accountID scopes the bucket name so it is unique per account/region.
	accountID string
}

// NewStager creates a Stager for the given region and account.
func NewStager(client ollamaaws.TemplateBucketAPI, region, accountID string) *Stager {
	return &Stager{client: client, region: region, accountID: accountID}
}

// BucketName returns the S3 bucket used for template staging.
// Format: ollamastack-templates-{accountID}-{region}.
func (s *Stager) BucketName() string {
	return fmt.Sprintf("ollamastack-templates-%s-%s", s.accountID, s.region)
}

// Resolve turns a template body into a Source. Bodies at or under the
// inline limit pass through unchanged; larger ones are uploaded and
// referenced by URL. Resolve may be called with a nil *Stager, in which case
// oversized bodies are an error.
func (s *Stager) Resolve(ctx context.Context, stackName, body string) (Source, error) {
	if len(body) <= maxInlineTemplateBytes {
		return Source{Body: body}, nil
	}
	if s == nil || s.client == nil {
		return Source{}, errors.New("template exceeds the inline size limit and no staging bucket is configured")
	}

	bucket := s.BucketName()
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return Source{}, fmt.Errorf("ensure template bucket %q: %w", bucket, err)
	}

	// Key the object by content hash so re-deploys of the same document are
	// idempotent uploads.
	sum := sha256.Sum256([]byte(body))
	key := fmt.Sprintf("%s/%s.yaml", stackName, hex.EncodeToString(sum[:]))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader([]byte(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/x-yaml"),
	})
	if err != nil {
		return Source{}, fmt.Errorf("upload template to s3://%s/%s: %w", bucket, key, err)
	}

	return Source{
		URL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, key),
	}, nil
}

// ensureBucket checks whether bucket exists; creates it if not, with all
// public access blocked.
func (s *Stager) ensureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *s3types.NotFound
	var noSuchBucket *s3types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("head bucket: %w", err)
	}

	// us-east-1 is the AWS special case: CreateBucket must not carry a
	// LocationConstraint for it.
	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if s.region != "us-east-1" {
		createInput.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, createInput); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	t := true
	if _, err := s.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       &t,
			BlockPublicPolicy:     &t,
			IgnorePublicAcls:      &t,
			RestrictPublicBuckets: &t,
		},
	}); err != nil {
		return fmt.Errorf("put public access block on %q: %w", bucket, err)
	}

	return nil
}
