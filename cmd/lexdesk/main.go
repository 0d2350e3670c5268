package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/lexdesk/internal/config"
	"github.com/xxxsen/lexdesk/internal/db"
	"github.com/xxxsen/lexdesk/internal/handler"
	"github.com/xxxsen/lexdesk/internal/job"
	"github.com/xxxsen/lexdesk/internal/middleware"
	"github.com/xxxsen/lexdesk/internal/pkg/retry"
	"github.com/xxxsen/lexdesk/internal/repo"
	"github.com/xxxsen/lexdesk/internal/schedule"
)

func main() {
	var (
		configPath string
		caseID     string
		parallel   int
		perSecond  float64
	)

	rootCmd := &cobra.Command{
		Use:   "lexdesk",
		Short: "lexdesk legal assistant backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run lexdesk server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg, conn)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "re-embed the documents of one case or of every case",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := buildApp(ctx, cfg, conn)
			if err != nil {
				return err
			}
			return runReindex(ctx, a, reindexOptions{CaseID: caseID, Parallel: parallel, PerSecond: perSecond})
		},
	}
	reindexCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	reindexCmd.Flags().StringVar(&caseID, "case", "", "only reindex documents of this case")
	reindexCmd.Flags().IntVar(&parallel, "parallel", 4, "documents indexed concurrently")
	reindexCmd.Flags().Float64Var(&perSecond, "rate", 2, "documents started per second, 0 for unlimited")

	rootCmd.AddCommand(runCmd, reindexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *repo.Conn, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(sqlDB, cfg.Database.Driver); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, repo.NewConn(sqlDB, cfg.Database.Driver, retryPolicy(cfg.Retry)), nil
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: time.Duration(cfg.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.MaxIntervalMs) * time.Millisecond,
	}
}

func runServer(cfg *config.Config, conn *repo.Conn) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, conn)
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Cases:           handler.NewCaseHandler(a.cases),
		Chats:           handler.NewChatHandler(a.chats),
		Documents:       handler.NewDocumentHandler(a.documents, a.retriever, cfg.UploadMaxBytes),
		Messages:        handler.NewMessageHandler(a.messages),
		Files:           handler.NewFileHandler(a.store),
		JWTSecret:       []byte(cfg.JWTSecret),
		StreamRateLimit: time.Duration(cfg.StreamRateLimitMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS.AllowOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{handler.StreamPathPattern})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler(schedule.WithRunTimeout(30 * time.Minute))
	if err := scheduler.AddJob(job.NewReindexPendingJob(a.documents, cfg.Jobs.ReindexPendingBatch), cfg.Jobs.ReindexPendingSpec); err != nil {
		return err
	}
	if cfg.EmbedCache.DBEnabled {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbedCache.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Jobs.CacheCleanupSpec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
