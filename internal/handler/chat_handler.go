package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/lexdesk/internal/pkg/errcode"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
	"github.com/xxxsen/lexdesk/internal/service"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type chatRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chats)
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req chatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request")
			return
		}
	}
	chat, err := h.chats.Create(c.Request.Context(), c.Param("case_id"), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chat)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), c.Param("case_id"), c.Param("chat_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
