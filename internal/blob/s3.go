// Package blob pushes generated datasets to S3-compatible object storage.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"playable/internal/config"
	"playable/internal/dataset"
	"playable/internal/logging"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentType is the media type datasets are stored with.
const ContentType = "application/jsonl"

// ErrBucketRequired is returned when no bucket is configured.
var ErrBucketRequired = errors.New("s3 bucket required")

// PutObjectAPI is the slice of the S3 client the uploader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object describes an uploaded dataset.
type Object struct {
	Bucket  string
	Key     string
	Size    int64
	Records int
	SHA256  string
	ETag    string
}

// URI returns the s3:// location of the object.
func (o Object) URI() string { return "s3://" + o.Bucket + "/" + o.Key }

// Uploader writes dataset files to a single bucket.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// New builds an uploader from storage settings. Static credentials are
// used when both keys are set; otherwise the default AWS chain applies.
func New(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	logging.Blob("S3 uploader ready: bucket=%s region=%s endpoint=%q", cfg.Bucket, region, cfg.Endpoint)
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient builds an uploader around an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key a local file is stored under.
func (u *Uploader) Key(file string) string {
	base := filepath.Base(file)
	if u.prefix == "" {
		return base
	}
	return path.Join(u.prefix, base)
}

// Push validates a JSONL dataset and uploads it. Nothing is uploaded if
// any line fails validation.
func (u *Uploader) Push(ctx context.Context, file string) (Object, error) {
	records, err := dataset.CheckFile(file)
	if err != nil {
		return Object{}, fmt.Errorf("refusing to push %s: %w", file, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Object{}, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Object{}, fmt.Errorf("failed to hash %s: %w", file, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Object{}, err
	}
	sum := hex.EncodeToString(h.Sum(nil))

	obj := Object{
		Bucket:  u.bucket,
		Key:     u.Key(file),
		Size:    info.Size(),
		Records: records,
		SHA256:  sum,
	}

	out, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(obj.Bucket),
		Key:           aws.String(obj.Key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(ContentType),
		Metadata: map[string]string{
			"records": strconv.Itoa(records),
			"sha256":  sum,
		},
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", obj.URI(), err)
	}
	if out != nil && out.ETag != nil {
		obj.ETag = strings.Trim(*out.ETag, `"`)
	}

	logging.Blob("Pushed %s (%d records, %d bytes)", obj.URI(), obj.Records, obj.Size)
	return obj, nil
}
