package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
)

type s3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
	PathStyle *bool  `json:"path_style"`
}

type s3Store struct {
	client    *s3.Client
	prefix    string
	publicURL string
	endpoint  string
	useSSL    bool
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(args interface{}) (Store, error) {
	config := &s3Config{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.SecretID == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("s3 secret_id/secret_key are required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(config.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.SecretID, config.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	endpoint := normalizeEndpoint(config.Endpoint, config.UseSSL)
	pathStyle := endpoint != ""
	if config.PathStyle != nil {
		pathStyle = *config.PathStyle
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
	return &s3Store{
		client:    client,
		prefix:    strings.Trim(config.Prefix, "/"),
		publicURL: config.PublicURL,
		endpoint:  endpoint,
		useSSL:    config.UseSSL,
	}, nil
}

func (s *s3Store) Type() string {
	return "s3"
}

func (s *s3Store) objectKey(key string) string {
	if s.prefix != "" {
		return path.Join(s.prefix, key)
	}
	return key
}

func (s *s3Store) url(bucket, objectKey string) string {
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/") + "/" + escapeKey(objectKey)
	}
	base := s.endpoint
	if base == "" {
		base = "https://s3.amazonaws.com"
	}
	return buildS3BaseURL(base, bucket) + "/" + escapeKey(objectKey)
}

func (s *s3Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	bucket, key, err := cleanKey(bucket, key)
	if err != nil {
		return "", err
	}
	objectKey := s.objectKey(key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return s.url(bucket, objectKey), nil
}

func (s *s3Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	bucket, key, err := cleanKey(bucket, key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, fmt.Errorf("s3 get object %s: %w", key, appErr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	return out.Body, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		return ""
	}
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		ep = scheme + "://" + ep
	}
	return strings.TrimSuffix(ep, "/")
}

func buildS3BaseURL(endpoint, bucket string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + "/" + bucket
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + bucket
	return u.String()
}
