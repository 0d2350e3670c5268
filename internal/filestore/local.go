package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
)

type localConfig struct {
	Dir       string `json:"dir"`
	PublicURL string `json:"public_url"`
}

type localStore struct {
	dir       string
	publicURL string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: config.Dir, publicURL: config.PublicURL}, nil
}

func (s *localStore) Type() string {
	return "local"
}

// url points at the public base when configured, otherwise at the files route.
func (s *localStore) url(bucket, key string) string {
	rel := bucket + "/" + escapeKey(key)
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/") + "/" + rel
	}
	return "/api/v1/files/" + rel
}

func (s *localStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	_ = ctx
	_ = contentType
	bucket, key, err := cleanKey(bucket, key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.url(bucket, key), nil
}

func (s *localStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	_ = ctx
	bucket, key, err := cleanKey(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.dir, bucket, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s/%s: %w", bucket, key, appErr.ErrNotFound)
	}
	return file, err
}
