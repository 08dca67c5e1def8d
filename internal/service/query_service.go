package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa-go/pkg/embedding"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"docqa-go/pkg/metrics"
	"docqa-go/pkg/vectorstore"
)

const (
	// NoContextAnswer 在集合不存在或没有检索结果时返回，此时不会调用模型。
	NoContextAnswer = "No relevant context found in the database."
	// MaxTopK 是单次请求允许的最大检索数量。
	MaxTopK = 20
)

const promptTemplate = `You are a helpful assistant. Use the following context from the document to answer.
If the answer isn't clear from the context, say "I don't have enough information in the document."

Context:
%s

Question:
%s`

// QueryResult 是问答接口的响应体。
type QueryResult struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	ContextUsed []string `json:"context_used"`
}

// QueryService 基于检索增强生成回答问题。
type QueryService interface {
	// Ask 在 collection 中检索 topK 个分块并生成回答。topK 为 0 时使用默认值。
	Ask(ctx context.Context, question, collection string, topK int) (*QueryResult, error)
}

type queryService struct {
	embedder    embedding.Client
	store       vectorstore.Store
	llmClient   llm.Client
	defaultTopK int
	metrics     *metrics.Metrics
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(embedder embedding.Client, store vectorstore.Store, llmClient llm.Client, defaultTopK int, m *metrics.Metrics) QueryService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &queryService{
		embedder:    embedder,
		store:       store,
		llmClient:   llmClient,
		defaultTopK: defaultTopK,
		metrics:     m,
	}
}

// BuildPrompt 把检索到的分块（以空行分隔）和问题填入提示词模板。
func BuildPrompt(contextChunks []string, question string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(contextChunks, "\n\n"), question)
}

func (s *queryService) Ask(ctx context.Context, question, collection string, topK int) (*QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, newError(ErrBadRequest, "Missing 'question' field")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, newError(ErrBadRequest, "Missing 'collection_name' field")
	}
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return nil, newError(ErrBadRequest, "top_k must be between 1 and %d", MaxTopK)
	}

	// 1. 集合不存在时直接返回固定回答
	exists, err := s.store.CollectionExists(ctx, collection)
	if err != nil {
		s.metrics.IncQuery("error")
		return nil, fmt.Errorf("%w: %v", ErrVectorStore, err)
	}
	if !exists {
		log.Infof("[QueryService] 集合 '%s' 不存在", collection)
		return s.noContext(question), nil
	}

	// 2. 以 retrieval.query 模式向量化问题
	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, []string{question}, embedding.TaskQuery)
	s.metrics.ObserveStage("embed", start)
	if err != nil {
		s.metrics.IncQuery("error")
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		s.metrics.IncQuery("error")
		return nil, fmt.Errorf("%w: got %d vectors for the question", ErrEmbedding, len(vectors))
	}

	// 3. 相似度检索
	start = time.Now()
	hits, err := s.store.Search(ctx, collection, vectors[0], topK)
	s.metrics.ObserveStage("search", start)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return s.noContext(question), nil
	}
	if err != nil {
		s.metrics.IncQuery("error")
		return nil, fmt.Errorf("%w: %v", ErrVectorStore, err)
	}
	chunks := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Text != "" {
			chunks = append(chunks, h.Text)
		}
	}
	if len(chunks) == 0 {
		return s.noContext(question), nil
	}
	log.Infof("[QueryService] 集合 '%s' 检索到 %d 个分块", collection, len(chunks))

	// 4. 组装提示词并生成回答
	start = time.Now()
	answer, err := s.llmClient.Generate(ctx, BuildPrompt(chunks, question))
	s.metrics.ObserveStage("generate", start)
	if err != nil {
		log.Errorf("[QueryService] 生成回答失败: %v", err)
		s.metrics.IncQuery("error")
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	s.metrics.IncQuery("answered")
	return &QueryResult{
		Question:    question,
		Answer:      strings.TrimSpace(answer),
		ContextUsed: chunks,
	}, nil
}

func (s *queryService) noContext(question string) *QueryResult {
	s.metrics.IncQuery("no_context")
	return &QueryResult{
		Question:    question,
		Answer:      NoContextAnswer,
		ContextUsed: []string{},
	}
}
