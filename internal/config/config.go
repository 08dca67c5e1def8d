// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// ProtectDocuments 为 true 时 /upload、/documents、/query 需要登录。
	ProtectDocuments bool `mapstructure:"protect_documents"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Mongo MongoConfig `mapstructure:"mongo"`
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MongoConfig 存储用户库（MongoDB）的配置。
type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	UserCollection string `mapstructure:"user_collection"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                   string `mapstructure:"secret"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布入库事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// StorageConfig 选择原始 PDF 的持久化方式：minio 或 local。
type StorageConfig struct {
	Provider string      `mapstructure:"provider"`
	LocalDir string      `mapstructure:"local_dir"`
	MinIO    MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
}

// UploadConfig 限制单次上传的大小。
type UploadConfig struct {
	MaxSizeMB int `mapstructure:"max_size_mb"`
}

// ExtractorConfig 选择 PDF 文本提取实现：native（进程内）或 tika。
type ExtractorConfig struct {
	Provider       string `mapstructure:"provider"`
	TikaServerURL  string `mapstructure:"tika_server_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ChunkingConfig 配置文本切分参数。
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// RetryConfig 描述外部调用的超时和有限重试。
type RetryConfig struct {
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
	MaxRetries        int `mapstructure:"max_retries"`
	InitialIntervalMS int `mapstructure:"initial_interval_ms"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string      `mapstructure:"api_key"`
	BaseURL    string      `mapstructure:"base_url"`
	Model      string      `mapstructure:"model"`
	Dimensions int         `mapstructure:"dimensions"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// VectorStoreConfig 选择向量库实现：qdrant 或 elasticsearch。
type VectorStoreConfig struct {
	Provider      string              `mapstructure:"provider"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Retry         RetryConfig         `mapstructure:"retry"`
}

// QdrantConfig 存储 Qdrant 连接信息，URL 形如 https://host:6334。
type QdrantConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses   string `mapstructure:"addresses"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	IndexPrefix string `mapstructure:"index_prefix"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Retry      RetryConfig         `mapstructure:"retry"`
}

// LLMGenerationConfig 配置生成相关参数（可选，零值表示使用模型默认值）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RetrievalConfig 配置检索阶段参数。
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// 原项目使用的环境变量名，继续兼容。
var legacyEnv = map[string]string{
	"database.mongo.uri":          "MONGO_URI",
	"embedding.api_key":           "JINA_API_KEY",
	"vector_store.qdrant.url":     "QDRANT_URL",
	"vector_store.qdrant.api_key": "QDRANT_API_KEY",
	"llm.api_key":                 "GOOGLE_API_KEY",
	"jwt.secret":                  "JWT_SECRET",
}

// Load 读取 .env、YAML 配置文件（可选）以及环境变量，返回解析后的配置。
// 优先级：环境变量 > 配置文件 > 默认值。
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "DOCQA_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	// 配置文件是可选的，仅依赖环境变量也可以运行
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验互相约束的配置项。
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size 必须大于 0")
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap 必须在 [0, chunk_size) 之间")
	}
	switch c.VectorStore.Provider {
	case "qdrant", "elasticsearch":
	default:
		return fmt.Errorf("未知的 vector_store.provider: %q", c.VectorStore.Provider)
	}
	switch c.Storage.Provider {
	case "minio", "local":
	default:
		return fmt.Errorf("未知的 storage.provider: %q", c.Storage.Provider)
	}
	switch c.Extractor.Provider {
	case "native", "tika":
	default:
		return fmt.Errorf("未知的 extractor.provider: %q", c.Extractor.Provider)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.protect_documents", false)

	v.SetDefault("database.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo.database", "ragAppDb")
	v.SetDefault("database.mongo.user_collection", "Users")
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_minutes", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "document-ingested")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key_id", "")
	v.SetDefault("storage.minio.secret_access_key", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.bucket_name", "uploads")
	v.SetDefault("storage.minio.region", "us-east-1")

	v.SetDefault("upload.max_size_mb", 50)

	v.SetDefault("extractor.provider", "native")
	v.SetDefault("extractor.tika_server_url", "http://localhost:9998")
	v.SetDefault("extractor.timeout_seconds", 120)

	v.SetDefault("chunking.chunk_size", 1000)
	v.SetDefault("chunking.chunk_overlap", 150)

	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)
	setRetryDefaults(v, "embedding.retry", 60)

	v.SetDefault("vector_store.provider", "qdrant")
	v.SetDefault("vector_store.qdrant.url", "http://localhost:6334")
	v.SetDefault("vector_store.qdrant.api_key", "")
	v.SetDefault("vector_store.elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("vector_store.elasticsearch.username", "")
	v.SetDefault("vector_store.elasticsearch.password", "")
	v.SetDefault("vector_store.elasticsearch.index_prefix", "docqa_")
	setRetryDefaults(v, "vector_store.retry", 30)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.generation.temperature", 0.0)
	v.SetDefault("llm.generation.top_p", 0.0)
	v.SetDefault("llm.generation.max_tokens", 0)
	setRetryDefaults(v, "llm.retry", 120)

	v.SetDefault("retrieval.top_k", 5)
}

func setRetryDefaults(v *viper.Viper, prefix string, timeoutSeconds int) {
	v.SetDefault(prefix+".timeout_seconds", timeoutSeconds)
	v.SetDefault(prefix+".max_retries", 1)
	v.SetDefault(prefix+".initial_interval_ms", 500)
}
