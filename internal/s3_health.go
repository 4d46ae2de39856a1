package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lychee-technology/pim"
)

type bucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ValidateStorageConfig performs basic sanity checks on attachment storage settings.
// An empty bucket disables attachment paths and is valid.
func ValidateStorageConfig(cfg pim.StorageConfig) error {
	if cfg.Bucket == "" {
		return nil
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey == "" {
		return fmt.Errorf("storage.accessKeyId provided without storage.secretAccessKey")
	}
	if cfg.SecretAccessKey != "" && cfg.AccessKeyID == "" {
		return fmt.Errorf("storage.secretAccessKey provided without storage.accessKeyId")
	}
	if cfg.UsePathStyle && cfg.Endpoint == "" {
		return fmt.Errorf("storage.usePathStyle requires storage.endpoint")
	}
	return nil
}

// StorageHealthCheck verifies the bucket is reachable with the configured
// credentials. timeout may be 0 to use 5s.
func StorageHealthCheck(ctx context.Context, client bucketHeader, bucket string, timeout time.Duration) error {
	if bucket == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("storage bucket %s unreachable: %w", bucket, err)
	}
	return nil
}
