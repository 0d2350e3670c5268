package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/middleware"
	"github.com/xxxsen/lexdesk/internal/pkg/errcode"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
	"github.com/xxxsen/lexdesk/internal/service"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *MessageHandler) List(c *gin.Context) {
	msgs, err := h.messages.List(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msgs)
}

func (h *MessageHandler) Create(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	msg, err := h.messages.Create(c.Request.Context(), c.Param("chat_id"), req.Role, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msg)
}

// Stream answers with server-sent events: one "delta" per fragment, then
// "done" with the stored reply id, or "error" when the reply failed.
func (h *MessageHandler) Stream(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ctx := c.Request.Context()
	chatID := c.Param("chat_id")
	rs, err := h.messages.Stream(ctx, chatID, req.Role, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	logger := logutil.GetLogger(ctx).With(zap.String("chat_id", chatID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	fragments := 0
	for delta, err := range rs.Fragments {
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("client went away during stream", zap.Int("fragments", fragments))
				return
			}
			logger.Error("assistant stream failed", zap.Int("fragments", fragments), zap.Error(err))
			code, msg := errorCode(err)
			c.SSEvent("error", gin.H{"error": msg, "code": code, "request_id": c.GetString(middleware.ContextRequestIDKey)})
			c.Writer.Flush()
			return
		}
		fragments++
		c.SSEvent("delta", gin.H{"content": delta})
		c.Writer.Flush()
	}
	c.SSEvent("done", gin.H{"message_id": rs.MessageID(), "user_message_id": rs.UserMessage.ID})
	c.Writer.Flush()
	logger.Info("assistant stream finished", zap.Int("fragments", fragments))
}
