package blob

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type S3Config struct {
	Endpoint        string
	Region          string `validate:"required"`
	Bucket          string `validate:"required"`
	AccessKeyID     string `validate:"required"`
	SecretAccessKey string `validate:"required"`
	PublicURL       string `validate:"required,url"`
}

func (c *S3Config) Validate() error {
	return validator.New().Struct(c)
}

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes media to an S3 compatible bucket served from PublicURL.
type S3Store struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	newKey    func() string
}

func NewS3Store(config S3Config) (*S3Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := s3.Options{
		Credentials: credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		),
		Region: config.Region,
	}
	if config.Endpoint != "" {
		opts.BaseEndpoint = aws.String(config.Endpoint)
		opts.UsePathStyle = true
	}

	return newS3Store(s3.New(opts), config.Bucket, config.PublicURL), nil
}

func newS3Store(client ObjectPutter, bucket, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		newKey:    func() string { return uuid.NewString() },
	}
}

func (s *S3Store) Put(ctx context.Context, pathHint string, data []byte, contentType string) (string, error) {
	key := s.objectKey(pathHint, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s.client.PutObject: %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}

func (s *S3Store) objectKey(pathHint, contentType string) string {
	ext := ""
	if m := mimetype.Lookup(contentType); m != nil {
		ext = m.Extension()
	}
	prefix := strings.Trim(path.Clean("/"+pathHint), "/")
	if prefix == "" {
		return s.newKey() + ext
	}
	return prefix + "/" + s.newKey() + ext
}
