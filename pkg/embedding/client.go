// Package embedding 提供了调用 Jina Embedding API 的客户端。
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
	"docqa-go/pkg/retry"
)

// 检索场景下 Jina 区分文档段落与查询两种任务。
const (
	TaskPassage = "retrieval.passage"
	TaskQuery   = "retrieval.query"
)

// Client 定义了 embedding 客户端的接口。
type Client interface {
	// Embed 按输入顺序返回每段文本的向量，长度与 texts 相同。
	Embed(ctx context.Context, texts []string, task string) ([][]float32, error)
	// Dimensions 返回配置的向量维度。
	Dimensions() int
}

type jinaClient struct {
	cfg    config.EmbeddingConfig
	policy retry.Policy
	client *http.Client
}

// NewClient 根据配置创建 Jina embedding 客户端。
func NewClient(cfg config.EmbeddingConfig) Client {
	return &jinaClient{
		cfg:    cfg,
		policy: retry.NewPolicy(cfg.Retry.TimeoutSeconds, cfg.Retry.MaxRetries, cfg.Retry.InitialIntervalMS),
		client: &http.Client{},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Task       string   `json:"task"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *jinaClient) Dimensions() int {
	return c.cfg.Dimensions
}

// Embed 在一次请求中发送全部文本。
func (c *jinaClient) Embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, task: %s, inputs: %d", c.cfg.Model, task, len(texts))

	reqBytes, err := json.Marshal(embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Task:       task,
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	var vectors [][]float32
	err = retry.Do(ctx, c.policy, nil, func(ctx context.Context) error {
		v, err := c.call(ctx, reqBytes)
		if err != nil {
			log.Warnf("[EmbeddingClient] 调用 Embedding API 失败: %v", err)
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	log.Infof("[EmbeddingClient] 成功获取 %d 个向量, 维度: %d", len(vectors), len(vectors[0]))
	return vectors, nil
}

func (c *jinaClient) call(ctx context.Context, body []byte) ([][]float32, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &retry.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	// 以 index 为准恢复输入顺序
	sort.SliceStable(embeddingResp.Data, func(i, j int) bool {
		return embeddingResp.Data[i].Index < embeddingResp.Data[j].Index
	})
	vectors := make([][]float32, 0, len(embeddingResp.Data))
	for _, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("received empty embedding from api")
		}
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}
