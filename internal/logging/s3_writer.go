package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"llm_compare/internal/models"
	"llm_compare/internal/utils"
)

// s3API is the subset of the S3 client the writer needs
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the round history archive
type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string // e.g. "rounds/"
	Instance string // distinguishes writers sharing a bucket

	// Endpoint overrides the AWS endpoint (e.g. a MinIO URL); it implies path-style addressing
	Endpoint string

	// Static credentials; when empty the default AWS credential chain is used
	AccessKeyID     string
	SecretAccessKey string
}

// S3Writer handles writing batches of round records to S3
type S3Writer struct {
	client   s3API
	bucket   string
	prefix   string
	instance string
	now      func() time.Time
	logger   *utils.Logger
}

// NewS3Writer creates a new S3 writer
func NewS3Writer(ctx context.Context, cfg S3Config) (*S3Writer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Writer(client, cfg), nil
}

func newS3Writer(client s3API, cfg S3Config) *S3Writer {
	instance := cfg.Instance
	if instance == "" {
		instance = "llm-compare"
	}
	return &S3Writer{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		instance: instance,
		now:      time.Now,
		logger:   utils.NewLogger("s3-writer"),
	}
}

// objectKey builds a date-partitioned key,
// e.g. rounds/2025/11/30/server-1-20251130-143022-123456789.jsonl
func (w *S3Writer) objectKey() string {
	now := w.now().UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%09d.jsonl",
		w.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		w.instance,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}

// Upload writes a batch as one JSON Lines object and returns its key
func (w *S3Writer) Upload(ctx context.Context, records []*models.RoundRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			w.logger.Error("Failed to encode record", "error", err)
			continue
		}
	}

	key := w.objectKey()
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	w.logger.Info("Wrote batch to S3", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}

// WriteBatch uploads the batch, discarding the key
func (w *S3Writer) WriteBatch(ctx context.Context, records []*models.RoundRecord) error {
	_, err := w.Upload(ctx, records)
	return err
}
