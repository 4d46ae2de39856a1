package internal

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

type objectHeader interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Client builds an S3 client from the storage settings. Static
// credentials are used when both keys are set, otherwise the default chain.
func NewS3Client(ctx context.Context, cfg pim.StorageConfig) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3AttachmentPaths presigns download and thumbnail URLs for attachments
// stored in a single bucket.
type S3AttachmentPaths struct {
	head    objectHeader
	presign objectPresigner
	cfg     pim.StorageConfig
	breaker *CircuitBreaker
}

var _ pim.AttachmentResolver = (*S3AttachmentPaths)(nil)

func NewS3AttachmentPaths(client *s3.Client, cfg pim.StorageConfig) *S3AttachmentPaths {
	return newS3AttachmentPaths(client, s3.NewPresignClient(client), cfg)
}

func newS3AttachmentPaths(head objectHeader, presign objectPresigner, cfg pim.StorageConfig) *S3AttachmentPaths {
	return &S3AttachmentPaths{
		head:    head,
		presign: presign,
		cfg:     cfg,
		breaker: NewCircuitBreaker("storage", cfg.BreakerThreshold, cfg.BreakerWindow, cfg.BreakerOpenDuration),
	}
}

// attachmentKey returns the object key of an attachment entity.
func attachmentKey(attachment *pim.Entity) string {
	name := attachment.GetString("name")
	if name == "" {
		return ""
	}
	return path.Join(attachment.GetString("storageFilePath"), name)
}

func isImage(attachment *pim.Entity) bool {
	return strings.HasPrefix(attachment.GetString("type"), "image/")
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// GetAttachmentPathsData returns a presigned download URL and, for images,
// presigned URLs of the thumbnails that exist.
func (p *S3AttachmentPaths) GetAttachmentPathsData(ctx context.Context, attachment *pim.Entity) (pim.PathsData, error) {
	key := attachmentKey(attachment)
	if key == "" {
		return pim.PathsData{}, fmt.Errorf("attachment without storage key: %w", pim.ErrResolutionMiss)
	}
	if !p.breaker.Allow() {
		zap.S().Debugw("storage circuit open, skipping attachment paths", "key", key)
		return pim.PathsData{}, fmt.Errorf("storage circuit open: %w", pim.ErrResolutionMiss)
	}

	download, err := p.presignKey(ctx, key)
	if err != nil {
		p.breaker.RecordFailure()
		return pim.PathsData{}, fmt.Errorf("presign attachment %s: %w", key, err)
	}
	paths := pim.PathsData{Download: download}

	if isImage(attachment) && len(p.cfg.ThumbnailSizes) > 0 {
		paths.Thumbnails = make(map[string]string, len(p.cfg.ThumbnailSizes))
		for _, size := range p.cfg.ThumbnailSizes {
			thumbKey := path.Join("thumbnails", size, key)
			_, err := p.head.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(p.cfg.Bucket), Key: aws.String(thumbKey)})
			if isNotFound(err) {
				continue
			}
			if err != nil {
				p.breaker.RecordFailure()
				return pim.PathsData{}, fmt.Errorf("head thumbnail %s: %w", thumbKey, err)
			}
			url, err := p.presignKey(ctx, thumbKey)
			if err != nil {
				p.breaker.RecordFailure()
				return pim.PathsData{}, fmt.Errorf("presign thumbnail %s: %w", thumbKey, err)
			}
			paths.Thumbnails[size] = url
		}
	}

	p.breaker.RecordSuccess()
	return paths, nil
}

func (p *S3AttachmentPaths) presignKey(ctx context.Context, key string) (string, error) {
	out, err := p.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(p.cfg.Bucket), Key: aws.String(key)},
		s3.WithPresignExpires(p.cfg.PresignExpiry),
	)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}
