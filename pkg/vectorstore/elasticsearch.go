package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
	"docqa-go/pkg/retry"
)

type esStore struct {
	client *elasticsearch.Client
	prefix string
	policy retry.Policy
}

// NewElasticsearch 创建基于 dense_vector 的向量库实现，每个集合对应一个索引。
func NewElasticsearch(esCfg config.ElasticsearchConfig, retryCfg config.RetryConfig) (Store, error) {
	var addresses []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return &esStore{
		client: client,
		prefix: esCfg.IndexPrefix,
		policy: retry.NewPolicy(retryCfg.TimeoutSeconds, retryCfg.MaxRetries, retryCfg.InitialIntervalMS),
	}, nil
}

// indexName 把集合名映射为合法的 ES 索引名（必须小写）。
func (s *esStore) indexName(collection string) string {
	return strings.ToLower(s.prefix + collection)
}

// responseError 读取 ES 错误响应并转换为 retry.StatusError。
func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return &retry.StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (s *esStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := retry.Do(ctx, s.policy, nil, func(ctx context.Context) error {
		res, err := s.client.Indices.Exists([]string{s.indexName(name)}, s.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		switch res.StatusCode {
		case http.StatusOK:
			exists = true
		case http.StatusNotFound:
			exists = false
		default:
			return responseError(res)
		}
		return nil
	})
	return exists, err
}

func (s *esStore) Recreate(ctx context.Context, name string, dim int) error {
	index := s.indexName(name)

	res, err := s.client.Indices.Delete([]string{index}, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("删除索引 '%s' 失败: %w", index, err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("删除索引 '%s' 失败: %s", index, res.Status())
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "long" },
				"text": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dim)

	res, err = s.client.Indices.Create(
		index,
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", index, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", index, res.String())
		return responseError(res)
	}
	log.Infof("索引 '%s' 创建成功, 维度: %d", index, dim)
	return nil
}

type esDocument struct {
	ChunkID uint64    `json:"chunk_id"`
	Text    string    `json:"text"`
	Vector  []float32 `json:"vector,omitempty"`
}

func (s *esStore) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	index := s.indexName(name)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range points {
		meta := map[string]map[string]string{"index": {"_index": index, "_id": strconv.FormatUint(p.ID, 10)}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(esDocument{ChunkID: p.ID, Text: p.Text, Vector: p.Vector}); err != nil {
			return err
		}
	}
	body := buf.Bytes()

	return retry.Do(ctx, s.policy, nil, func(ctx context.Context) error {
		req := esapi.BulkRequest{
			Body:    bytes.NewReader(body),
			Refresh: "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return responseError(res)
		}

		var bulkResp struct {
			Errors bool `json:"errors"`
		}
		if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
			return fmt.Errorf("解析 bulk 响应失败: %w", err)
		}
		if bulkResp.Errors {
			return fmt.Errorf("bulk 写入索引 '%s' 时部分文档失败", index)
		}
		return nil
	})
}

type knnSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string     `json:"_id"`
			Score  float32    `json:"_score"`
			Source esDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *esStore) Search(ctx context.Context, name string, vector []float32, limit int) ([]Hit, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCollectionNotFound
	}

	numCandidates := limit * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              limit,
			"num_candidates": numCandidates,
		},
		"_source": []string{"chunk_id", "text"},
		"size":    limit,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	var parsed knnSearchResponse
	err = retry.Do(ctx, s.policy, nil, func(ctx context.Context) error {
		res, err := s.client.Search(
			s.client.Search.WithContext(ctx),
			s.client.Search.WithIndex(s.indexName(name)),
			s.client.Search.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return responseError(res)
		}
		parsed = knnSearchResponse{}
		return json.NewDecoder(res.Body).Decode(&parsed)
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: h.Source.ChunkID, Score: h.Score, Text: h.Source.Text})
	}
	return hits, nil
}

// Close 无需释放资源，go-elasticsearch 复用底层 http.Transport。
func (s *esStore) Close() error {
	return nil
}
