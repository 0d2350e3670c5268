package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/filestore"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
)

type FileHandler struct {
	store filestore.Store
}

func NewFileHandler(store filestore.Store) *FileHandler {
	return &FileHandler{store: store}
}

// Get serves /files/<bucket>/<key> straight from the store.
func (h *FileHandler) Get(c *gin.Context) {
	raw := strings.TrimPrefix(c.Param("key"), "/")
	bucket, key, ok := strings.Cut(raw, "/")
	if !ok || bucket == "" || key == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	file, err := h.store.Open(c.Request.Context(), bucket, key)
	if errors.Is(err, filestore.ErrInvalidKey) {
		c.Status(http.StatusBadRequest)
		return
	}
	if appErr.IsNotFound(err) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("open file failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer file.Close()
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
