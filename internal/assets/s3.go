package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const assetCacheControl = "public, max-age=31536000, immutable"

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket        string
	Region        string
	Prefix        string
	PublicBaseURL string
	// Static credentials are optional; the default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps assets in a bucket and returns their public URL.
type S3Store struct {
	client        s3API
	bucket        string
	prefix        string
	publicBaseURL string
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, fmt.Errorf("s3 bucket and region are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3Store(s3.NewFromConfig(awsCfg), opts), nil
}

func newS3Store(client s3API, opts S3Options) *S3Store {
	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{
		client:        client,
		bucket:        opts.Bucket,
		prefix:        prefix,
		publicBaseURL: base,
	}
}

func (s *S3Store) Save(ctx context.Context, upload Upload) (string, error) {
	key := s.prefix + uuid.NewString() + upload.Ext
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          upload.reader(),
		ContentLength: aws.Int64(int64(len(upload.Data))),
		ContentType:   aws.String(upload.ContentType),
		CacheControl:  aws.String(assetCacheControl),
	})
	if err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", key).
			Msg("Failed to upload asset to S3")
		return "", fmt.Errorf("put s3 object: %w", err)
	}
	return s.publicBaseURL + "/" + key, nil
}

// Delete removes an asset previously returned by Save. URLs outside the bucket are ignored.
func (s *S3Store) Delete(ctx context.Context, publicPath string) error {
	key, ok := strings.CutPrefix(publicPath, s.publicBaseURL+"/")
	if !ok || key == "" || !strings.HasPrefix(key, s.prefix) {
		return nil
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete s3 object: %w", err)
	}
	return nil
}
