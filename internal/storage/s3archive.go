package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Archive stores rendered review reports outside the local disk.
type Archive interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// S3Archive uploads reports to an S3 bucket.
type S3Archive struct {
	svc    s3iface.S3API
	bucket string
	prefix string
}

// NewS3Archive creates an archive backed by the given AWS session.
func NewS3Archive(sess client.ConfigProvider, bucket, prefix string) *S3Archive {
	return NewS3ArchiveWithClient(s3.New(sess), bucket, prefix)
}

// NewS3ArchiveWithClient is used by tests to inject a fake S3 client.
func NewS3ArchiveWithClient(svc s3iface.S3API, bucket, prefix string) *S3Archive {
	return &S3Archive{svc: svc, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads data and returns its s3:// location.
func (a *S3Archive) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	objectKey := key
	if a.prefix != "" {
		objectKey = path.Join(a.prefix, key)
	}

	_, err := a.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to s3: %w", objectKey, err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, objectKey), nil
}
