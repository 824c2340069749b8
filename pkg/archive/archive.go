package archive

import (
	"bytes"
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/ssrdata/internal/config"
	"github.com/vango-dev/ssrdata/internal/errors"
)

// Entry is one archived page payload.
type Entry struct {
	Page      string
	RequestID string
	Path      string
	Payload   []byte
	At        time.Time
}

// Sink stores entries.
type Sink interface {
	Put(ctx context.Context, e Entry) error
}

// PutObjectAPI is the part of *s3.Client the S3 sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes entries as JSON objects to an S3 bucket.
//
// Example usage:
//
//	client, _ := archive.NewS3Client(cfg.Archive)
//	sink := archive.NewS3Sink(client, "snapshots", "prod/")
//	err := sink.Put(ctx, archive.Entry{Page: "Posts", Payload: payload})
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Sink creates a sink writing under prefix in bucket.
func NewS3Sink(client PutObjectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of e: prefix/page/yyyy/mm/dd/request-id.json.
func (s *S3Sink) Key(e Entry) string {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	id := e.RequestID
	if id == "" {
		id = at.Format("150405.000000000")
	}
	return s.prefix + path.Join(keySegment(e.Page), at.Format("2006/01/02"), keySegment(id)+".json")
}

// Put uploads e. Failures are E130 errors carrying the key.
func (s *S3Sink) Put(ctx context.Context, e Entry) error {
	key := s.Key(e)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(e.Payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"page":       e.Page,
			"request-id": e.RequestID,
			"path":       e.Path,
		},
	})
	if err != nil {
		return errors.New("E130").Wrap(err).With("bucket", s.bucket).With("key", key)
	}
	return nil
}

// NewS3Client builds an S3 client from the archive config. Credentials come
// from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN. A
// custom endpoint switches to path-style addressing for MinIO and LocalStack.
func NewS3Client(cfg config.ArchiveConfig) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials(context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "EnvironmentVariables",
	}, nil
}

// FromConfig returns the configured sink, or nil when archiving is off.
func FromConfig(cfg config.ArchiveConfig) Sink {
	if !cfg.Enabled {
		return nil
	}
	return NewS3Sink(NewS3Client(cfg), cfg.Bucket, cfg.Prefix)
}

func keySegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
