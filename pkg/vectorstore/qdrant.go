package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
	"docqa-go/pkg/retry"
)

const defaultQdrantPort = 6334

// qdrantAPI 是 *qdrant.Client 中被用到的方法子集。
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

type qdrantStore struct {
	client qdrantAPI
	policy retry.Policy
}

// NewQdrant 通过 gRPC 连接 Qdrant。URL 形如 http://localhost:6334，https 时启用 TLS。
func NewQdrant(cfg config.QdrantConfig, retryCfg config.RetryConfig) (Store, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("连接 Qdrant 失败: %w", err)
	}
	log.Infof("Qdrant 客户端已创建, host: %s, port: %d, tls: %v", host, port, useTLS)
	return newQdrantStore(client, retryCfg), nil
}

func newQdrantStore(client qdrantAPI, retryCfg config.RetryConfig) *qdrantStore {
	return &qdrantStore{
		client: client,
		policy: retry.NewPolicy(retryCfg.TimeoutSeconds, retryCfg.MaxRetries, retryCfg.InitialIntervalMS),
	}
}

func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("无效的 Qdrant URL %q", raw)
	}
	port = defaultQdrantPort
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, false, fmt.Errorf("无效的 Qdrant 端口 %q", p)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// isTransientGRPC 在 HTTP 判定之外补充 gRPC 的可重试状态码。
func isTransientGRPC(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return retry.IsTransient(err)
}

func (s *qdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := retry.Do(ctx, s.policy, isTransientGRPC, func(ctx context.Context) error {
		var err error
		exists, err = s.client.CollectionExists(ctx, name)
		return err
	})
	return exists, err
}

func (s *qdrantStore) Recreate(ctx context.Context, name string, dim int) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("检查集合 '%s' 失败: %w", name, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("删除集合 '%s' 失败: %w", name, err)
		}
		log.Infof("[Qdrant] 已删除旧集合 '%s'", name)
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("创建集合 '%s' 失败: %w", name, err)
	}
	log.Infof("[Qdrant] 集合 '%s' 创建成功, 维度: %d", name, dim)
	return nil
}

func (s *qdrantStore) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qp := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qp = append(qp, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{"text": p.Text}),
		})
	}
	return retry.Do(ctx, s.policy, isTransientGRPC, func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         qp,
		})
		return err
	})
}

func (s *qdrantStore) Search(ctx context.Context, name string, vector []float32, limit int) ([]Hit, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCollectionNotFound
	}

	l := uint64(limit)
	var scored []*qdrant.ScoredPoint
	err = retry.Do(ctx, s.policy, isTransientGRPC, func(ctx context.Context) error {
		var err error
		scored, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          &l,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scored))
	for _, sp := range scored {
		hit := Hit{Score: sp.GetScore(), ID: sp.GetId().GetNum()}
		if v, ok := sp.GetPayload()["text"]; ok {
			hit.Text = v.GetStringValue()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *qdrantStore) Close() error {
	return s.client.Close()
}
