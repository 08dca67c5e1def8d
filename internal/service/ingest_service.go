package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/pkg/events"
	"docqa-go/pkg/kafka"
	"docqa-go/pkg/log"
	"docqa-go/pkg/metrics"
	"docqa-go/pkg/storage"
)

const (
	msgIngestSuccess = "Upload, extraction & embedding successful!"
	sampleChunkCount = 3
	// DefaultUploadListLimit 是 GET /documents 默认返回的记录数。
	DefaultUploadListLimit = 50
)

// IngestSummary 是上传接口的响应体。
type IngestSummary struct {
	Message           string   `json:"message"`
	OriginalFilename  string   `json:"original_filename"`
	SavedAs           string   `json:"saved_as"`
	CollectionName    string   `json:"collection_name"`
	TotalChunks       int      `json:"total_chunks"`
	VectorStoreStatus string   `json:"vector_store_status"`
	SampleChunks      []string `json:"sample_chunks"`
}

// IngestService 负责 PDF 上传入库。
type IngestService interface {
	Upload(ctx context.Context, fileName string, r io.Reader) (*IngestSummary, error)
	ListUploads(ctx context.Context, limit int) ([]model.DocumentUpload, error)
}

type ingestService struct {
	store     storage.ObjectStore
	processor *pipeline.Processor
	ledger    repository.UploadRepository
	publisher kafka.Publisher
	metrics   *metrics.Metrics
	maxBytes  int64
	now       func() time.Time
}

// NewIngestService 创建一个新的 IngestService 实例。ledger、publisher 与 m 都可以为 nil。
func NewIngestService(
	store storage.ObjectStore,
	processor *pipeline.Processor,
	ledger repository.UploadRepository,
	publisher kafka.Publisher,
	m *metrics.Metrics,
	maxSizeMB int,
) IngestService {
	return &ingestService{
		store:     store,
		processor: processor,
		ledger:    ledger,
		publisher: publisher,
		metrics:   m,
		maxBytes:  int64(maxSizeMB) << 20,
		now:       time.Now,
	}
}

// Upload 保存原始 PDF，并以文件名（去掉扩展名）作为集合名完成入库。
func (s *ingestService) Upload(ctx context.Context, fileName string, r io.Reader) (*IngestSummary, error) {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".pdf") {
		return nil, newError(ErrUnsupportedMediaType, "Only PDF files are allowed.")
	}
	stem := strings.TrimSuffix(base, ext)
	if strings.TrimSpace(stem) == "" {
		return nil, newError(ErrBadRequest, "File name must not be empty")
	}

	data, err := s.readLimited(r)
	if err != nil {
		return nil, err
	}

	// 1. 以时间戳区分同名文件并保存原始字节
	savedAs := fmt.Sprintf("%s_%s%s", stem, s.now().Format("20060102_150405"), ext)
	location, err := s.store.Save(ctx, savedAs, bytes.NewReader(data), int64(len(data)), "application/pdf")
	if err != nil {
		log.Errorf("[IngestService] 保存文件 '%s' 失败: %v", savedAs, err)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	log.Infof("[IngestService] 文件已保存: %s -> %s", base, location)

	// 2. 入库记录，失败不影响主流程
	record := &model.DocumentUpload{
		OriginalFilename: base,
		StoredFilename:   savedAs,
		StorageLocation:  location,
		CollectionName:   stem,
	}
	s.createRecord(ctx, record)

	// 3. 提取、切分、向量化并写入向量库
	res, err := s.processor.Process(ctx, stem, base, data)
	if err != nil {
		s.finish(ctx, record, 0, err)
		return nil, err
	}
	s.finish(ctx, record, len(res.Chunks), nil)

	sample := res.Chunks
	if len(sample) > sampleChunkCount {
		sample = sample[:sampleChunkCount]
	}
	return &IngestSummary{
		Message:           msgIngestSuccess,
		OriginalFilename:  base,
		SavedAs:           savedAs,
		CollectionName:    stem,
		TotalChunks:       len(res.Chunks),
		VectorStoreStatus: res.StoreStatus,
		SampleChunks:      append([]string{}, sample...),
	}, nil
}

func (s *ingestService) readLimited(r io.Reader) ([]byte, error) {
	if s.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxBytes {
		return nil, newError(ErrBadRequest, "File exceeds the %d MB upload limit", s.maxBytes>>20)
	}
	return data, nil
}

func (s *ingestService) createRecord(ctx context.Context, record *model.DocumentUpload) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		log.Warnf("[IngestService] 创建入库记录失败: %v", err)
	}
}

// finish 更新入库记录、累计指标并发布事件。
func (s *ingestService) finish(ctx context.Context, record *model.DocumentUpload, chunks int, procErr error) {
	// 请求被取消时仍然要把结果写下去
	ctx = context.WithoutCancel(ctx)

	record.TotalChunks = chunks
	if procErr != nil {
		record.Status = model.UploadStatusFailed
		record.ErrorMessage = procErr.Error()
		s.metrics.IncIngest("failed", 0)
	} else {
		record.Status = model.UploadStatusCompleted
		s.metrics.IncIngest("success", chunks)
	}

	if s.ledger != nil && record.ID != 0 {
		var err error
		if procErr != nil {
			err = s.ledger.MarkFailed(ctx, record.ID, record.ErrorMessage)
		} else {
			err = s.ledger.MarkCompleted(ctx, record.ID, chunks)
		}
		if err != nil {
			log.Warnf("[IngestService] 更新入库记录 %d 失败: %v", record.ID, err)
		}
	}

	if s.publisher == nil {
		return
	}
	ev := events.DocumentIngested{
		UploadID:         record.ID,
		OriginalFilename: record.OriginalFilename,
		StoredFilename:   record.StoredFilename,
		CollectionName:   record.CollectionName,
		TotalChunks:      chunks,
		Status:           record.StatusText(),
		Error:            record.ErrorMessage,
		OccurredAt:       s.now().UTC(),
	}
	if err := s.publisher.PublishIngested(ctx, ev); err != nil {
		log.Warnf("[IngestService] 发布入库事件失败: %v", err)
	}
}

// ListUploads 按时间倒序返回入库记录；未配置 MySQL 时返回空列表。
func (s *ingestService) ListUploads(ctx context.Context, limit int) ([]model.DocumentUpload, error) {
	if s.ledger == nil {
		return []model.DocumentUpload{}, nil
	}
	if limit <= 0 {
		limit = DefaultUploadListLimit
	}
	records, err := s.ledger.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.DocumentUpload{}
	}
	return records, nil
}
