package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
)

const gcsUploadTimeout = 2 * time.Minute

type gcsConfig struct {
	Credentials string `json:"credentials"`
	Prefix      string `json:"prefix"`
	PublicURL   string `json:"public_url"`
}

type gcsStore struct {
	client    *storage.Client
	prefix    string
	publicURL string
}

func init() {
	Register("gcs", createGCSStore)
}

func createGCSStore(args interface{}) (Store, error) {
	config := &gcsConfig{}
	if args != nil {
		if err := decodeConfig(args, config); err != nil {
			return nil, err
		}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := strings.TrimSpace(config.Credentials); creds != "" {
		if strings.HasPrefix(creds, "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &gcsStore{
		client:    client,
		prefix:    strings.Trim(config.Prefix, "/"),
		publicURL: config.PublicURL,
	}, nil
}

func (s *gcsStore) Type() string {
	return "gcs"
}

func (s *gcsStore) objectKey(key string) string {
	if s.prefix != "" {
		return path.Join(s.prefix, key)
	}
	return key
}

func (s *gcsStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	bucket, key, err := cleanKey(bucket, key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsUploadTimeout)
	defer cancel()

	objectKey := s.objectKey(key)
	w := s.client.Bucket(bucket).Object(objectKey).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/") + "/" + escapeKey(objectKey), nil
	}
	return "https://storage.googleapis.com/" + bucket + "/" + escapeKey(objectKey), nil
}

func (s *gcsStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	bucket, key, err := cleanKey(bucket, key)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(s.objectKey(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("open gcs object %s: %w", key, appErr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open gcs object: %w", err)
	}
	return r, nil
}
