// Package archive stores the original receipt images in an S3-compatible
// bucket. Archiving is optional and never blocks ingestion.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores an image under the record id and returns its object key.
type Archiver interface {
	Put(ctx context.Context, recordID string, image []byte) (string, error)
}

// NopArchiver is used when no bucket is configured.
type NopArchiver struct{}

func (NopArchiver) Put(context.Context, string, []byte) (string, error) { return "", nil }

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options describes the target bucket. Endpoint is set for MinIO and other
// S3-compatible servers.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Archiver writes images to receipts/YYYY/MM/DD/<id>.
type S3Archiver struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Archiver builds an S3 client from opts. Static credentials are used
// when both keys are set; otherwise the default AWS chain applies.
func NewS3Archiver(ctx context.Context, opts S3Options) (*S3Archiver, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, opts.Bucket), nil
}

func newS3Archiver(c objectPutter, bucket string) *S3Archiver {
	return &S3Archiver{client: c, bucket: bucket, now: time.Now}
}

// ObjectKey returns the key for recordID archived at t.
func ObjectKey(recordID string, t time.Time) string {
	return fmt.Sprintf("receipts/%04d/%02d/%02d/%s", t.Year(), t.Month(), t.Day(), recordID)
}

func (a *S3Archiver) Put(ctx context.Context, recordID string, image []byte) (string, error) {
	key := ObjectKey(recordID, a.now().UTC())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentLength: aws.Int64(int64(len(image))),
		ContentType:   aws.String(http.DetectContentType(image)),
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}
