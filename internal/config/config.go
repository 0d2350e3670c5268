package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	defaultChunkSize        = 1500
	defaultChunkOverlap     = 200
	defaultMaxContextChunks = 6
	defaultBucket           = "legal-assistant-uploads"
	defaultUploadMaxBytes   = 20 * 1024 * 1024
	defaultSystemPrompt     = `You are a legal assistant helping a lawyer work on a case.
Answer using the case materials provided to you whenever they are relevant and say so when they are not sufficient.
Do not invent facts, statutes or case law. Answer in the language of the question.`
)

type Config struct {
	Port              int              `json:"port"`
	JWTSecret         string           `json:"jwt_secret"`
	LogConfig         logger.LogConfig `json:"log_config"`
	Database          DatabaseConfig   `json:"database"`
	FileStore         FileStoreConfig  `json:"file_store"`
	AI                AIConfig         `json:"ai"`
	RAG               RAGConfig        `json:"rag"`
	Retry             RetryConfig      `json:"retry"`
	EmbedCache        EmbedCacheConfig `json:"embed_cache"`
	Extract           ExtractConfig    `json:"extract"`
	Jobs              JobsConfig       `json:"jobs"`
	CORS              CORSConfig       `json:"cors"`
	StreamRateLimitMs int              `json:"stream_rate_limit_ms"`
	UploadMaxBytes    int64            `json:"upload_max_bytes"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type   string      `json:"type"`
	Bucket string      `json:"bucket"`
	Data   interface{} `json:"data"`
}

// AIConfig selects the chat and embedding providers. Provider data blocks are
// decoded by the matching provider factory.
type AIConfig struct {
	Provider      string           `json:"provider"`
	Data          interface{}      `json:"data"`
	ChatModel     string           `json:"chat_model"`
	EmbedProvider string           `json:"embed_provider"`
	EmbedData     interface{}      `json:"embed_data"`
	EmbedModel    string           `json:"embed_model"`
	EmbedDims     int              `json:"embed_dims"`
	Timeout       int              `json:"timeout"`
	Fallbacks     []ProviderConfig `json:"fallbacks"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type RAGConfig struct {
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	MaxContextChunks int    `json:"max_context_chunks"`
	SystemPrompt     string `json:"system_prompt"`
	SystemPromptFile string `json:"system_prompt_file"`
}

type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts"`
	InitialIntervalMs int `json:"initial_interval_ms"`
	MaxIntervalMs     int `json:"max_interval_ms"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type ExtractConfig struct {
	OCR               string `json:"ocr"`
	OCRLanguages      string `json:"ocr_languages"`
	TesseractPath     string `json:"tesseract_path"`
	VisionCredentials string `json:"vision_credentials"`
}

type JobsConfig struct {
	ReindexPendingSpec  string `json:"reindex_pending_spec"`
	ReindexPendingBatch int    `json:"reindex_pending_batch"`
	CacheCleanupSpec    string `json:"cache_cleanup_spec"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins"`
}

// Load reads the JSON config at path, applies LEXDESK_* environment overrides
// (optionally sourced from a .env file next to the process) and fills defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEXDESK_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LEXDESK_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("LEXDESK_AI_API_KEY"); v != "" {
		cfg.AI.Data = withAPIKey(cfg.AI.Data, v)
		if cfg.AI.EmbedData != nil {
			cfg.AI.EmbedData = withAPIKey(cfg.AI.EmbedData, v)
		}
	}
	if v := os.Getenv("LEXDESK_SYSTEM_PROMPT"); v != "" {
		cfg.RAG.SystemPrompt = v
	}
}

func withAPIKey(data interface{}, key string) interface{} {
	m, ok := data.(map[string]interface{})
	if !ok {
		m = map[string]interface{}{}
	}
	if existing, _ := m["api_key"].(string); existing == "" {
		m["api_key"] = key
	}
	return m
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if err := c.Database.normalize(); err != nil {
		return err
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.FileStore.Bucket == "" {
		c.FileStore.Bucket = defaultBucket
	}
	if err := c.AI.normalize(); err != nil {
		return err
	}
	if err := c.RAG.normalize(); err != nil {
		return err
	}
	if c.EmbedCache.MaxAgeDays <= 0 {
		c.EmbedCache.MaxAgeDays = 30
	}
	if c.Extract.OCR == "" {
		c.Extract.OCR = "tesseract"
	}
	if c.Extract.OCRLanguages == "" {
		c.Extract.OCRLanguages = "rus+eng"
	}
	if c.Jobs.ReindexPendingBatch <= 0 {
		c.Jobs.ReindexPendingBatch = 20
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = defaultUploadMaxBytes
	}
	return nil
}

func (d *DatabaseConfig) normalize() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	if d.Driver == "" {
		d.Driver = "postgres"
	}
	switch d.Driver {
	case "postgres":
		if d.DSN == "" && d.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required")
		}
		if d.Port == 0 {
			d.Port = 5432
		}
	case "sqlite":
		if d.Path == "" && d.DSN == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	return nil
}

func (a *AIConfig) normalize() error {
	if strings.TrimSpace(a.Provider) == "" {
		return fmt.Errorf("ai.provider is required")
	}
	if a.ChatModel == "" {
		a.ChatModel = "gpt-5-mini"
	}
	if a.EmbedProvider == "" {
		a.EmbedProvider = a.Provider
		a.EmbedData = a.Data
	}
	if a.EmbedModel == "" {
		a.EmbedModel = "text-embedding-3-large"
	}
	if a.EmbedDims == 0 {
		a.EmbedDims = 1536
	}
	if a.Timeout <= 0 {
		a.Timeout = 60
	}
	return nil
}

func (r *RAGConfig) normalize() error {
	if r.ChunkSize == 0 {
		r.ChunkSize = defaultChunkSize
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = defaultChunkOverlap
	}
	if r.MaxContextChunks <= 0 {
		r.MaxContextChunks = defaultMaxContextChunks
	}
	if r.ChunkSize <= 0 || r.ChunkOverlap < 0 || r.ChunkSize-r.ChunkOverlap <= 0 {
		return fmt.Errorf("rag.chunk_size must be greater than rag.chunk_overlap")
	}
	if r.SystemPrompt == "" && r.SystemPromptFile != "" {
		raw, err := os.ReadFile(r.SystemPromptFile)
		if err != nil {
			return fmt.Errorf("read system prompt: %w", err)
		}
		r.SystemPrompt = strings.TrimSpace(string(raw))
	}
	if r.SystemPrompt == "" {
		r.SystemPrompt = defaultSystemPrompt
	}
	return nil
}
