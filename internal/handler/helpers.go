package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/middleware"
	"github.com/xxxsen/lexdesk/internal/pkg/errcode"
	appErr "github.com/xxxsen/lexdesk/internal/pkg/errors"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	code, msg := errorCode(err)
	response.Error(c, code, msg)
}

func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrForbidden):
		return errcode.ErrForbidden, "forbidden"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, "invalid request"
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrTooLarge):
		return errcode.ErrTooLarge, "payload too large"
	case errors.Is(err, ai.ErrChatNotConfigured), errors.Is(err, ai.ErrEmbedNotConfigured), errors.Is(err, ai.ErrUnavailable):
		return errcode.ErrAIUnavailable, "ai provider unavailable"
	default:
		return errcode.ErrInternal, "internal error"
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	value := c.Query(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
