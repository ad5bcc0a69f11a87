package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/circuit"
)

// ErrMirrorOpen is returned while the breaker skips uploads.
var ErrMirrorOpen = errors.New("offsite mirror circuit open")

// ObjectPutter is the subset of the S3 client used by the mirror.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Mirror uploads snapshots to an S3 compatible bucket behind a circuit
// breaker.
type S3Mirror struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewS3Client builds a client from static credentials, or from the default
// AWS chain when none are given.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Mirror(client ObjectPutter, bucket, prefix string, breaker *circuit.Breaker, logger *slog.Logger) *S3Mirror {
	if breaker == nil {
		breaker = circuit.New("s3-mirror", circuit.WithFailureThreshold(3))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3Mirror{client: client, bucket: bucket, prefix: prefix, breaker: breaker, logger: logger}
}

func (m *S3Mirror) Upload(ctx context.Context, path string, ref SnapshotRef) error {
	if !m.breaker.Allow() {
		return ErrMirrorOpen
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.prefix + ref.Name),
		Body:          f,
		ContentLength: aws.Int64(ref.Size),
		Metadata:      map[string]string{"blake3": ref.Checksum},
	})
	if err != nil {
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "offsite mirror disabled after repeated failures", "breaker", m.breaker.Name())
		}
		return fmt.Errorf("put %s: %w", ref.Name, err)
	}
	if _, change := m.breaker.RecordSuccess(); change.Closed {
		m.logger.InfoContext(ctx, "offsite mirror recovered", "breaker", m.breaker.Name())
	}
	return nil
}
