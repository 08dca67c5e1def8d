// Package pipeline 定义了文件处理的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"docqa-go/pkg/embedding"
	"docqa-go/pkg/log"
	"docqa-go/pkg/metrics"
	"docqa-go/pkg/vectorstore"
)

// 各阶段失败时返回的哨兵错误，调用方用 errors.Is 区分。
var (
	ErrExtraction  = errors.New("text extraction failed")
	ErrEmbedding   = errors.New("embedding request failed")
	ErrVectorStore = errors.New("vector store operation failed")
)

// StatusCompleted 是写入向量库成功后的状态。
const StatusCompleted = "completed"

// Extractor 从原始文件中提取纯文本。
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileName string) (string, error)
}

// Result 是一次处理的结果。
type Result struct {
	Chunks      []string
	Dimension   int
	StoreStatus string
}

// Processor 封装了文件处理的所有依赖和逻辑。
type Processor struct {
	extractor Extractor
	splitter  *RecursiveSplitter
	embedder  embedding.Client
	store     vectorstore.Store
	metrics   *metrics.Metrics
}

// NewProcessor 创建一个新的 Processor 实例。m 可以为 nil。
func NewProcessor(
	extractor Extractor,
	splitter *RecursiveSplitter,
	embedder embedding.Client,
	store vectorstore.Store,
	m *metrics.Metrics,
) *Processor {
	return &Processor{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		metrics:   m,
	}
}

// Process 提取、切分、向量化 data，并用结果替换名为 collection 的集合。
// 只有向量化全部成功后才会重建集合，失败时旧集合保持不变。
func (p *Processor) Process(ctx context.Context, collection, fileName string, data []byte) (*Result, error) {
	log.Infof("[Processor] 开始处理文件, FileName: %s, Collection: %s, Size: %d", fileName, collection, len(data))

	// 1. 提取文本
	log.Info("[Processor] 步骤1: 提取文本内容")
	start := time.Now()
	text, err := p.extractor.Extract(ctx, data, fileName)
	p.metrics.ObserveStage("extract", start)
	if err != nil {
		log.Errorf("[Processor] 提取文本失败, FileName: %s, Error: %v", fileName, err)
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	log.Infof("[Processor] 步骤1: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	// 2. 文本切块
	chunks := p.splitter.Split(text)
	log.Infof("[Processor] 步骤2: 文本分块完成, chunkSize: %d, chunkOverlap: %d, 共 %d 个分块",
		p.splitter.ChunkSize, p.splitter.ChunkOverlap, len(chunks))

	// 3. 一次请求完成全部分块的向量化
	dim := p.embedder.Dimensions()
	var vectors [][]float32
	if len(chunks) > 0 {
		log.Infof("[Processor] 步骤3: 向量化 %d 个分块", len(chunks))
		start = time.Now()
		vectors, err = p.embedder.Embed(ctx, chunks, embedding.TaskPassage)
		p.metrics.ObserveStage("embed", start)
		if err != nil {
			log.Errorf("[Processor] 向量化失败, 集合 '%s' 保持不变, Error: %v", collection, err)
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
		}
		dim = len(vectors[0])
	} else {
		log.Warnf("[Processor] 文件 '%s' 未生成任何分块, 将创建空集合", fileName)
	}

	// 4. 重建集合并写入
	log.Infof("[Processor] 步骤4: 重建集合 '%s', 维度: %d", collection, dim)
	start = time.Now()
	defer p.metrics.ObserveStage("store", start)
	if err := p.store.Recreate(ctx, collection, dim); err != nil {
		log.Errorf("[Processor] 重建集合失败, Error: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrVectorStore, err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{ID: uint64(i), Vector: vectors[i], Text: chunk}
	}
	if err := p.store.Upsert(ctx, collection, points); err != nil {
		log.Errorf("[Processor] 写入向量失败, Error: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrVectorStore, err)
	}

	log.Infof("[Processor] 文件处理完成, FileName: %s, 写入 %d 个向量", fileName, len(points))
	return &Result{Chunks: chunks, Dimension: dim, StoreStatus: StatusCompleted}, nil
}
