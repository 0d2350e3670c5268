package filestore

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/config"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
)

func TestLocalStoreUploadAndOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Type())

	url, err := store.Upload(context.Background(), "uploads", "abc/claim form.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/files/uploads/abc/claim%20form.txt", url)
	assert.FileExists(t, filepath.Join(dir, "uploads", "abc", "claim form.txt"))

	rc, err := store.Open(context.Background(), "uploads", "abc/claim form.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = store.Open(context.Background(), "uploads", "abc/missing.txt")
	assert.True(t, appErr.IsNotFound(err))
}

func TestLocalStorePublicURL(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{
		"dir":        t.TempDir(),
		"public_url": "https://cdn.example.com/files/",
	}})
	require.NoError(t, err)
	url, err := store.Upload(context.Background(), "b", "k.txt", []byte("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/b/k.txt", url)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	cases := []struct {
		bucket string
		key    string
	}{
		{"b", "../escape.txt"},
		{"b", "/abs.txt"},
		{"b", "a/../../x"},
		{"", "k.txt"},
		{"../b", "k.txt"},
		{"b", ""},
	}
	for _, tc := range cases {
		_, err := store.Upload(context.Background(), tc.bucket, tc.key, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, "bucket=%q key=%q", tc.bucket, tc.key)
	}
}

func TestNewStoreErrors(t *testing.T) {
	_, err := New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"endpoint": "minio:9000"}})
	require.Error(t, err)
}

func TestS3URL(t *testing.T) {
	s := &s3Store{endpoint: normalizeEndpoint("minio:9000", false), prefix: "docs"}
	assert.Equal(t, "http://minio:9000/uploads/docs/a/b.pdf", s.url("uploads", s.objectKey("a/b.pdf")))

	s = &s3Store{publicURL: "https://files.example.com/"}
	assert.Equal(t, "https://files.example.com/a.pdf", s.url("uploads", "a.pdf"))
}
