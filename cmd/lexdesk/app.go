package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/ai"
	"github.com/xxxsen/lexdesk/internal/config"
	"github.com/xxxsen/lexdesk/internal/embedcache"
	"github.com/xxxsen/lexdesk/internal/extract"
	"github.com/xxxsen/lexdesk/internal/filestore"
	"github.com/xxxsen/lexdesk/internal/repo"
	"github.com/xxxsen/lexdesk/internal/service"
)

type app struct {
	docRepo   *repo.DocumentRepo
	cacheRepo *repo.EmbeddingCacheRepo
	store     filestore.Store
	indexer   *service.Indexer
	retriever *service.Retriever
	cases     *service.CaseService
	chats     *service.ChatService
	documents *service.DocumentService
	messages  *service.MessageService
}

func buildApp(ctx context.Context, cfg *config.Config, conn *repo.Conn) (*app, error) {
	caseRepo := repo.NewCaseRepo(conn)
	chatRepo := repo.NewChatRepo(conn)
	messageRepo := repo.NewMessageRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewEmbeddingRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	streamer, err := buildStreamer(cfg.AI)
	if err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return nil, err
	}
	if cfg.EmbedCache.DBEnabled {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second)

	chunker, err := ai.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}
	ocr, err := extract.NewOCR(ctx, cfg.Extract)
	if err != nil {
		return nil, fmt.Errorf("init ocr: %w", err)
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	indexer := service.NewIndexer(chunker, embedder, chunkRepo, retryPolicy(cfg.Retry))
	retriever := service.NewRetriever(docRepo, chunkRepo, embedder, cfg.RAG.MaxContextChunks)
	orchestrator := service.NewOrchestrator(streamer, cfg.RAG.SystemPrompt)

	return &app{
		docRepo:   docRepo,
		cacheRepo: cacheRepo,
		store:     store,
		indexer:   indexer,
		retriever: retriever,
		cases:     service.NewCaseService(caseRepo),
		chats:     service.NewChatService(caseRepo, chatRepo),
		documents: service.NewDocumentService(caseRepo, docRepo, chunkRepo, store, cfg.FileStore.Bucket, extract.New(ocr), indexer),
		messages:  service.NewMessageService(chatRepo, messageRepo, retriever, orchestrator),
	}, nil
}

// buildStreamer puts the primary provider first and every usable fallback
// after it.
func buildStreamer(cfg config.AIConfig) (ai.IChatStreamer, error) {
	primary, err := ai.NewChatProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	entries := []ai.StreamerEntry{{Name: primary.Name(), Streamer: ai.NewChatStreamer(primary, cfg.ChatModel)}}
	for _, fb := range cfg.Fallbacks {
		p, err := ai.NewChatProvider(fb.Provider, fb.Data)
		if err != nil {
			logutil.GetLogger(context.Background()).Warn("skip chat fallback", zap.String("provider", fb.Provider), zap.Error(err))
			continue
		}
		model := fb.Model
		if model == "" {
			model = cfg.ChatModel
		}
		entries = append(entries, ai.StreamerEntry{Name: p.Name(), Streamer: ai.NewChatStreamer(p, model)})
	}
	return ai.NewGroupStreamer(entries), nil
}

// buildEmbedder only falls back to providers serving the same embedding
// model, since stored vectors must stay comparable.
func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	opts := []ai.EmbedderOption{ai.WithEmbedTimeout(time.Duration(cfg.Timeout) * time.Second)}
	primary, err := ai.NewEmbedProvider(cfg.EmbedProvider, cfg.EmbedData)
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}
	entries := []ai.EmbedderEntry{{Name: primary.Name(), Embedder: ai.NewEmbedder(primary, cfg.EmbedModel, cfg.EmbedDims, opts...)}}
	for _, fb := range cfg.Fallbacks {
		p, err := ai.NewEmbedProvider(fb.Provider, fb.Data)
		if err != nil {
			continue
		}
		entries = append(entries, ai.EmbedderEntry{Name: p.Name(), Embedder: ai.NewEmbedder(p, cfg.EmbedModel, cfg.EmbedDims, opts...)})
	}
	return ai.NewGroupEmbedder(entries), nil
}
