package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/lexdesk/internal/middleware"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
)

// StreamPathPattern matches the SSE route; compression must skip it.
const StreamPathPattern = `^/api/v1/chats/[^/]+/messages/stream$`

type RouterDeps struct {
	Cases           *CaseHandler
	Chats           *ChatHandler
	Documents       *DocumentHandler
	Messages        *MessageHandler
	Files           *FileHandler
	JWTSecret       []byte
	StreamRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	api.GET("/files/*key", deps.Files.Get)

	authGroup := api.Group("")
	authGroup.Use(middleware.Identity(deps.JWTSecret))

	authGroup.GET("/cases", deps.Cases.List)
	authGroup.POST("/cases", deps.Cases.Create)
	authGroup.GET("/cases/:case_id", deps.Cases.Get)
	authGroup.PATCH("/cases/:case_id", deps.Cases.Update)
	authGroup.DELETE("/cases/:case_id", deps.Cases.Delete)

	authGroup.GET("/cases/:case_id/documents", deps.Documents.List)
	authGroup.POST("/cases/:case_id/documents", deps.Documents.Upload)
	authGroup.DELETE("/cases/:case_id/documents/:document_id", deps.Documents.Delete)
	authGroup.POST("/cases/:case_id/documents/:document_id/reindex", deps.Documents.Reindex)
	authGroup.GET("/cases/:case_id/search", deps.Documents.Search)

	authGroup.GET("/cases/:case_id/chats", deps.Chats.List)
	authGroup.POST("/cases/:case_id/chats", deps.Chats.Create)
	authGroup.DELETE("/cases/:case_id/chats/:chat_id", deps.Chats.Delete)

	authGroup.GET("/chats/:chat_id/messages", deps.Messages.List)
	authGroup.POST("/chats/:chat_id/messages", deps.Messages.Create)
	authGroup.POST("/chats/:chat_id/messages/stream", middleware.RateLimit(deps.StreamRateLimit), deps.Messages.Stream)
}
