package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"docqa-go/internal/config"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/database"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/kafka"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"docqa-go/pkg/metrics"
	"docqa-go/pkg/pdf"
	"docqa-go/pkg/storage"
	"docqa-go/pkg/tika"
	"docqa-go/pkg/token"
	"docqa-go/pkg/vectorstore"
)

// app 持有所有在启动时创建、需要在退出时关闭的依赖。
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	mongoClient *mongo.Client
	mysqlDB     *gorm.DB
	redisClient *redis.Client
	vectors     vectorstore.Store
	publisher   kafka.Publisher

	userService   service.UserService
	ingestService service.IngestService
	queryService  service.QueryService
}

// loadConfig 读取配置并初始化日志记录器。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

// newApp 按配置创建全部客户端并完成依赖注入。withUsers 为 false 时跳过 MongoDB 与 Redis。
func newApp(ctx context.Context, cfg *config.Config, withUsers bool) (a *app, err error) {
	a = &app{cfg: cfg, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// 1. 原始文件存储与入库记录
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化文件存储失败: %w", err)
	}
	var ledger repository.UploadRepository
	if cfg.Database.MySQL.DSN != "" {
		if a.mysqlDB, err = database.NewMySQL(cfg.Database.MySQL.DSN); err != nil {
			return nil, err
		}
		if err = repository.AutoMigrate(a.mysqlDB); err != nil {
			return nil, fmt.Errorf("迁移 document_uploads 失败: %w", err)
		}
		ledger = repository.NewUploadRepository(a.mysqlDB)
	} else {
		log.Warnf("未配置 database.mysql.dsn，入库记录不会被保存")
	}
	a.publisher = kafka.NewPublisher(cfg.Kafka)

	// 2. 外部模型与向量库
	embedder := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	switch cfg.VectorStore.Provider {
	case "elasticsearch":
		a.vectors, err = vectorstore.NewElasticsearch(cfg.VectorStore.Elasticsearch, cfg.VectorStore.Retry)
	default:
		a.vectors, err = vectorstore.NewQdrant(cfg.VectorStore.Qdrant, cfg.VectorStore.Retry)
	}
	if err != nil {
		return nil, fmt.Errorf("初始化向量库失败: %w", err)
	}

	var extractor pipeline.Extractor
	if cfg.Extractor.Provider == "tika" {
		extractor = tika.NewClient(cfg.Extractor)
	} else {
		extractor = pdf.NewExtractor()
	}

	processor := pipeline.NewProcessor(
		extractor,
		pipeline.NewRecursiveSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		embedder,
		a.vectors,
		a.metrics,
	)
	a.ingestService = service.NewIngestService(objects, processor, ledger, a.publisher, a.metrics, cfg.Upload.MaxSizeMB)
	a.queryService = service.NewQueryService(embedder, a.vectors, llmClient, cfg.Retrieval.TopK, a.metrics)

	if !withUsers {
		return a, nil
	}

	// 3. 用户库与 token 黑名单
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret (JWT_SECRET) 不能为空")
	}
	if a.mongoClient, err = database.NewMongo(ctx, cfg.Database.Mongo); err != nil {
		return nil, err
	}
	userRepo := repository.NewUserRepository(
		a.mongoClient.Database(cfg.Database.Mongo.Database).Collection(cfg.Database.Mongo.UserCollection))
	if err = userRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("创建用户索引失败: %w", err)
	}

	var denylist repository.TokenDenylist
	if cfg.Database.Redis.Addr != "" {
		if a.redisClient, err = database.NewRedis(ctx, cfg.Database.Redis); err != nil {
			return nil, err
		}
		denylist = repository.NewTokenDenylist(a.redisClient)
	} else {
		log.Warnf("未配置 Redis，登出不会使 token 失效")
	}
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpireMinutes)*time.Minute)
	a.userService = service.NewUserService(userRepo, denylist, jwtManager)
	return a, nil
}

// close 释放所有连接，可重复调用。
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.Warnf("关闭 Kafka writer 失败: %v", err)
		}
		a.publisher = nil
	}
	if a.vectors != nil {
		if err := a.vectors.Close(); err != nil {
			log.Warnf("关闭向量库连接失败: %v", err)
		}
		a.vectors = nil
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
		a.redisClient = nil
	}
	if a.mysqlDB != nil {
		if sqlDB, err := a.mysqlDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		a.mysqlDB = nil
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			log.Warnf("断开 MongoDB 失败: %v", err)
		}
		a.mongoClient = nil
	}
}
