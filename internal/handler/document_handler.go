package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/lexdesk/internal/pkg/errcode"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
	"github.com/xxxsen/lexdesk/internal/service"
)

type DocumentHandler struct {
	documents      *service.DocumentService
	retriever      *service.Retriever
	uploadMaxBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, retriever *service.Retriever, uploadMaxBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, retriever: retriever, uploadMaxBytes: uploadMaxBytes}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.uploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, errcode.ErrTooLarge, "file exceeds "+formatUploadLimit(h.uploadMaxBytes))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	doc, err := h.documents.Store(c.Request.Context(), c.Param("case_id"), file.Filename, contentType, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("case_id"), c.Param("document_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Reindex(c *gin.Context) {
	count, err := h.documents.Reindex(c.Request.Context(), c.Param("case_id"), c.Param("document_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document_id": c.Param("document_id"), "chunks": count})
}

func (h *DocumentHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "q required")
		return
	}
	results, err := h.retriever.Search(c.Request.Context(), c.Param("case_id"), query, queryInt(c, "top_k", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, results)
}
