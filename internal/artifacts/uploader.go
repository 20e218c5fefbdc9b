package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploaderConfig holds the configuration for creating an Uploader.
type UploaderConfig struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Prefix is prepended to every object key.
	Prefix string
	// UsePathStyle enables path-style addressing (MinIO, gofakes3).
	UsePathStyle bool
}

// Uploader copies a run directory to an S3 bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	logger *log.Logger
}

// NewUploader creates an uploader from configuration, falling back to the
// default AWS credential chain when no static keys are given.
func NewUploader(ctx context.Context, cfg UploaderConfig) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewUploaderFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewUploaderFromClient wraps an existing S3 client.
func NewUploaderFromClient(client *s3.Client, bucket, prefix string) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: log.New(os.Stderr, "[artifacts] ", log.LstdFlags),
	}
}

// Key returns the object key for a file relative to the run directory.
func (u *Uploader) Key(runID, rel string) string {
	return path.Join(u.prefix, runID, filepath.ToSlash(rel))
}

// UploadDir uploads every regular file under dir below prefix/runID and
// returns the keys written, in walk order.
func (u *Uploader) UploadDir(ctx context.Context, dir, runID string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := u.Key(runID, rel)
		if err := u.putFile(ctx, p, key); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, err
	}
	u.logger.Printf("uploaded %d files to s3://%s/%s", len(keys), u.bucket, u.Key(runID, ""))
	return keys, nil
}

func (u *Uploader) putFile(ctx context.Context, p, key string) error {
	content, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType(p)),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return nil
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
