package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/config"
)

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, in *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// S3Client uploads run artifacts and downloads input documents. When a
// password is set, uploads are sealed with Encrypt and sealed downloads are
// opened transparently.
type S3Client struct {
	bucket   string
	prefix   string
	password string
	up       uploader
	down     downloader
}

// NewS3Client builds a client from the default AWS chain, overridden by
// the region, endpoint and static keys in cfg when present.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	var opts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Client{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.ResultPrefix, "/"),
		password: cfg.ArtifactPassword,
		up:       manager.NewUploader(cli),
		down:     manager.NewDownloader(cli),
	}, nil
}

// Bucket is the default bucket for uploads.
func (s *S3Client) Bucket() string { return s.bucket }

// Put stores data under key in the default bucket.
func (s *S3Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	meta := map[string]string{"encrypted": "false"}
	if s.password != "" {
		sealed, err := Encrypt(data, s.password)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		data = sealed
		meta["encrypted"] = "true"
		meta["encryption-format"] = gcmMagic
	}
	_, err := s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debug().Str("bucket", s.bucket).Str("key", key).Int("size", len(data)).Msg("uploaded object")
	return nil
}

// Get downloads bucket/key, opening sealed objects with the password.
func (s *S3Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.down.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	data := buf.Bytes()
	if IsEncrypted(data) {
		if s.password == "" {
			return nil, fmt.Errorf("object %s is encrypted and no password is configured", key)
		}
		return Decrypt(data, s.password)
	}
	return data, nil
}

// Published lists the keys written for a run.
type Published struct {
	ResultKey string   `json:"result_key"`
	ImageKeys []string `json:"image_keys"`
}

// PublishRun uploads the output JSON and every image file of a run under
// {prefix}/{runID}/.
func (s *S3Client) PublishRun(ctx context.Context, runID string, result []byte, imagesDir string, images []string) (Published, error) {
	base := path.Join(s.prefix, runID)
	pub := Published{ResultKey: path.Join(base, "exam.json")}
	if err := s.Put(ctx, pub.ResultKey, result, "application/json"); err != nil {
		return Published{}, err
	}
	for _, name := range images {
		data, err := os.ReadFile(filepath.Join(imagesDir, name))
		if err != nil {
			log.Warn().Err(err).Str("image", name).Msg("image missing, not published")
			continue
		}
		key := path.Join(base, "images", name)
		if err := s.Put(ctx, key, data, mimetype.Detect(data).String()); err != nil {
			return pub, err
		}
		pub.ImageKeys = append(pub.ImageKeys, key)
	}
	log.Info().
		Str("run_id", runID).
		Str("bucket", s.bucket).
		Str("result_key", pub.ResultKey).
		Int("images", len(pub.ImageKeys)).
		Msg("run published to S3")
	return pub, nil
}
