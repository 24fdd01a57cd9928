package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/retry"
)

// S3 stores images in an S3 compatible bucket.
type S3 struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
	policy  retry.Policy
}

// NewS3 builds a client from the media config. Static keys are used when both are set,
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg coreconfig.MediaConfig, policy retry.Policy) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg, policy), nil
}

func newS3(client *s3.Client, cfg coreconfig.MediaConfig, policy retry.Policy) *S3 {
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: publicBase(cfg),
		policy:  policy,
	}
}

func publicBase(cfg coreconfig.MediaConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func (s *S3) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// URL returns the public URL of key.
func (s *S3) URL(key string) string {
	u := s.baseURL + "/"
	for i, part := range strings.Split(s.objectKey(key), "/") {
		if i > 0 {
			u += "/"
		}
		u += url.PathEscape(part)
	}
	return u
}

func (s *S3) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	err := s.policy.Do(ctx, "media.upload", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(s.objectKey(key)),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("media: upload %s: %w", key, err)
	}
	logger.Info(ctx, logger.CompMedia, "media.upload",
		slog.String("media_key", key),
		slog.Int("bytes", len(data)),
	)
	return s.URL(key), nil
}

func (s *S3) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := retry.Value(ctx, s.policy, "media.download", func(ctx context.Context) ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		if err != nil {
			if isNoSuchKey(err) {
				return nil, retry.Permanent(fmt.Errorf("media %s: %w", key, ErrNotFound))
			}
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("media: download %s: %w", key, err)
	}
	return data, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	err := s.policy.Do(ctx, "media.delete", func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		if err != nil && isNoSuchKey(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("media: delete %s: %w", key, err)
	}
	logger.Info(ctx, logger.CompMedia, "media.delete", slog.String("media_key", key))
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
