package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const ndjsonContentType = "application/x-ndjson"

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination overwrites a single object with each export.
type S3Destination struct {
	client objectPutter
	bucket string
	key    string
}

// NewS3Destination loads credentials from the default AWS chain. A
// non-empty endpoint selects an S3-compatible server such as MinIO and
// switches to path-style addressing.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" || key == "" {
		return nil, errors.New("s3 destination needs a bucket and key")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

func (d *S3Destination) String() string {
	return "s3://" + d.bucket + "/" + d.key
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ndjsonContentType),
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s: %w", d, err)
	}
	return nil
}
