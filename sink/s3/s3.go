// Package s3 uploads run reports to S3-compatible object storage.
//
// Each report is stored as JSON under runs/<workflow>/<run_id>.json.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/sink"
)

// ObjectPutter is the subset of *minio.Client used by the sink.
type ObjectPutter interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ ObjectPutter = (*minio.Client)(nil)

// Config describes an S3 endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Sink writes reports into a bucket.
type Sink struct {
	client ObjectPutter
	bucket string
	region string
}

var _ sink.Sink = (*Sink)(nil)

// New creates a sink writing to bucket through client.
func New(client ObjectPutter, bucket string) *Sink {
	return &Sink{client: client, bucket: bucket}
}

// Dial connects to the endpoint in cfg with static credentials.
func Dial(cfg Config) (*Sink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, stepflow.NewValidationError("s3 endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	s := New(client, cfg.Bucket)
	s.region = cfg.Region
	return s, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Sink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Key returns the object key for r.
func Key(r sink.Report) string {
	return fmt.Sprintf("runs/%s/%s.json", sanitizeKey(r.Workflow), sanitizeKey(r.RunID))
}

// Write uploads r as a JSON object.
func (s *Sink) Write(ctx context.Context, r sink.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return stepflow.NewJSONError(err)
	}
	key := Key(r)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"workflow": r.Workflow,
				"status":   r.Status(),
			},
		})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// sanitizeKey replaces spaces and slashes so names stay one path segment.
func sanitizeKey(s string) string {
	return strings.NewReplacer(" ", "-", "/", "_").Replace(s)
}
