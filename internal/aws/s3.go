// Package aws provides thin wrappers around AWS SDK clients used by
// ollamastack. This file defines narrow interfaces for the S3 operations
// used when a template body is too large to submit inline and has to be
// staged in a bucket.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI defines the subset of the S3 API used for uploading a
// template document.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HeadBucketAPI defines the subset used to check bucket existence.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// CreateBucketAPI defines the subset used to create a bucket.
type CreateBucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// PutPublicAccessBlockAPI defines the subset used to block public access.
type PutPublicAccessBlockAPI interface {
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
}

// TemplateBucketAPI groups the S3 bucket management operations needed for
// template staging into a single interface for mock injection in tests.
type TemplateBucketAPI interface {
	PutObjectAPI
	HeadBucketAPI
	CreateBucketAPI
	PutPublicAccessBlockAPI
}

// Compile-time checks: *s3.Client satisfies all narrow interfaces.
var (
	_ PutObjectAPI            = (*s3.Client)(nil)
	_ HeadBucketAPI           = (*s3.Client)(nil)
	_ CreateBucketAPI         = (*s3.Client)(nil)
	_ PutPublicAccessBlockAPI = (*s3.Client)(nil)
	_ TemplateBucketAPI       = (*s3.Client)(nil)
)
