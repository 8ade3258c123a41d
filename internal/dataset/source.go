package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source opens a table by location
type Source interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FileSource reads tables from the local filesystem
type FileSource struct{}

// Open opens a local file
func (FileSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	return os.Open(location)
}

// ObjectGetter is the part of the S3 API a table read needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads tables addressed as s3://bucket/key
type S3Source struct {
	client ObjectGetter
}

// NewS3Source wraps an existing client
func NewS3Source(client ObjectGetter) *S3Source {
	return &S3Source{client: client}
}

// NewS3SourceFromEnv builds a client from the default AWS credential chain.
// AWS_ENDPOINT_URL switches to path-style addressing for MinIO compatible stores,
// and static AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY take precedence when both are set.
func NewS3SourceFromEnv(ctx context.Context) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	opts = append(opts, awsconfig.WithRegion(region))

	keyID, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if keyID != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Source{client: client}, nil
}

// Open fetches the object body
func (s *S3Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	return result.Body, nil
}

// ParseS3URI splits s3://bucket/key into its parts
func ParseS3URI(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location needs a bucket and a key: %s", location)
	}
	return bucket, key, nil
}

// IsS3 reports whether location addresses an S3 object
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// Router dispatches s3:// locations to S3 and everything else to the filesystem.
// The S3 client is only built the first time an s3:// table is opened.
type Router struct {
	Local FileSource

	mu    sync.Mutex
	s3    Source
	newS3 func(ctx context.Context) (Source, error)
}

// NewRouter returns a router that builds its S3 client from the environment
func NewRouter() *Router {
	return &Router{
		newS3: func(ctx context.Context) (Source, error) {
			return NewS3SourceFromEnv(ctx)
		},
	}
}

// NewRouterWithS3 returns a router using the given S3 source
func NewRouterWithS3(s3src Source) *Router {
	return &Router{s3: s3src}
}

// Open implements Source
func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsS3(location) {
		return r.Local.Open(ctx, location)
	}

	r.mu.Lock()
	if r.s3 == nil {
		if r.newS3 == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("no s3 source configured for %s", location)
		}
		src, err := r.newS3(ctx)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.s3 = src
	}
	src := r.s3
	r.mu.Unlock()

	return src.Open(ctx, location)
}
