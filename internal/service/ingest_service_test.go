package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/metrics"
	"docqa-go/pkg/vectorstore/vectorstoretest"
)

type ingestFixture struct {
	svc       *ingestService
	objects   *memObjectStore
	vectors   *vectorstoretest.Store
	embedder  *hashEmbedder
	ledger    *memLedger
	publisher *recordingPublisher
}

func newIngestFixture(text string, extractErr error) *ingestFixture {
	f := &ingestFixture{
		objects:   newMemObjectStore(),
		vectors:   vectorstoretest.New(),
		embedder:  &hashEmbedder{dim: 1024},
		ledger:    &memLedger{},
		publisher: &recordingPublisher{},
	}
	proc := pipeline.NewProcessor(
		stubExtractor{text: text, err: extractErr},
		pipeline.NewRecursiveSplitter(1000, 150),
		f.embedder, f.vectors, metrics.New(),
	)
	f.svc = NewIngestService(f.objects, proc, f.ledger, f.publisher, metrics.New(), 1).(*ingestService)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return f
}

func TestUpload_ReportScenario(t *testing.T) {
	f := newIngestFixture(strings.Repeat("abcdefghij", 300), nil)

	summary, err := f.svc.Upload(context.Background(), "report.pdf", bytes.NewReader([]byte("%PDF-1.4 fake")))
	require.NoError(t, err)

	assert.Equal(t, msgIngestSuccess, summary.Message)
	assert.Equal(t, "report.pdf", summary.OriginalFilename)
	assert.Equal(t, "report_20240309_140507.pdf", summary.SavedAs)
	assert.Equal(t, "report", summary.CollectionName)
	assert.Equal(t, 4, summary.TotalChunks)
	assert.Equal(t, pipeline.StatusCompleted, summary.VectorStoreStatus)
	assert.Len(t, summary.SampleChunks, 3)

	// 原始字节原样保存
	assert.Equal(t, []byte("%PDF-1.4 fake"), f.objects.objects["report_20240309_140507.pdf"])

	require.Len(t, f.embedder.calls, 1)
	assert.Len(t, f.embedder.calls[0].texts, 4)
	assert.Equal(t, embedding.TaskPassage, f.embedder.calls[0].task)

	assert.Equal(t, 1024, f.vectors.Dimension("report"))
	points := f.vectors.Points("report")
	require.Len(t, points, 4)
	for i, p := range points {
		assert.EqualValues(t, i, p.ID)
	}

	require.Len(t, f.ledger.records, 1)
	rec := f.ledger.records[0]
	assert.Equal(t, model.UploadStatusCompleted, rec.Status)
	assert.Equal(t, 4, rec.TotalChunks)
	assert.Equal(t, "mem://report_20240309_140507.pdf", rec.StorageLocation)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, "report", ev.CollectionName)
	assert.Equal(t, 4, ev.TotalChunks)
	assert.Equal(t, rec.ID, ev.UploadID)
	assert.Empty(t, ev.Error)
}

func TestUpload_UppercaseExtensionAccepted(t *testing.T) {
	f := newIngestFixture("short text", nil)

	summary, err := f.svc.Upload(context.Background(), "Annual Report.PDF", bytes.NewReader([]byte("%PDF")))
	require.NoError(t, err)
	assert.Equal(t, "Annual Report", summary.CollectionName)
	assert.Equal(t, "Annual Report_20240309_140507.PDF", summary.SavedAs)
	assert.Equal(t, 1, summary.TotalChunks)
}

func TestUpload_RejectsNonPDFWithoutSideEffects(t *testing.T) {
	f := newIngestFixture("irrelevant", nil)

	for _, name := range []string{"notes.txt", "archive.pdf.zip", "pdf", ""} {
		summary, err := f.svc.Upload(context.Background(), name, strings.NewReader("hello"))
		require.ErrorIs(t, err, ErrUnsupportedMediaType, name)
		assert.EqualError(t, err, "Only PDF files are allowed.")
		assert.Nil(t, summary)
	}

	assert.Empty(t, f.objects.objects)
	assert.Empty(t, f.vectors.RecreateCalls)
	assert.Zero(t, f.vectors.UpsertCalls)
	assert.Empty(t, f.embedder.calls)
	assert.Empty(t, f.ledger.records)
	assert.Empty(t, f.publisher.events)
}

func TestUpload_StripsDirectoryComponents(t *testing.T) {
	f := newIngestFixture("body", nil)

	summary, err := f.svc.Upload(context.Background(), "../../etc/report.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", summary.OriginalFilename)
	assert.Equal(t, "report", summary.CollectionName)
}

func TestUpload_TooLarge(t *testing.T) {
	f := newIngestFixture("body", nil)

	big := bytes.Repeat([]byte("x"), (1<<20)+1)
	_, err := f.svc.Upload(context.Background(), "big.pdf", bytes.NewReader(big))
	require.ErrorIs(t, err, ErrBadRequest)
	assert.Empty(t, f.objects.objects)
}

func TestUpload_StorageFailure(t *testing.T) {
	f := newIngestFixture("body", nil)
	f.objects.err = errors.New("disk full")

	_, err := f.svc.Upload(context.Background(), "report.pdf", strings.NewReader("%PDF"))
	require.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, f.embedder.calls)
	assert.Empty(t, f.ledger.records)
}

func TestUpload_ExtractionFailureIsRecorded(t *testing.T) {
	f := newIngestFixture("", errors.New("malformed xref"))

	_, err := f.svc.Upload(context.Background(), "broken.pdf", strings.NewReader("not a pdf"))
	require.ErrorIs(t, err, ErrExtraction)

	// 原始文件已保存，集合未创建
	assert.Len(t, f.objects.objects, 1)
	assert.Empty(t, f.vectors.RecreateCalls)

	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, model.UploadStatusFailed, f.ledger.records[0].Status)
	assert.Contains(t, f.ledger.records[0].ErrorMessage, "malformed xref")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "failed", f.publisher.events[0].Status)
}

func TestUpload_EmbeddingFailureKeepsExistingCollection(t *testing.T) {
	f := newIngestFixture("fresh content", nil)
	require.NoError(t, f.vectors.Recreate(context.Background(), "report", 8))
	f.vectors.RecreateCalls = nil
	f.embedder.err = errors.New("jina 503")

	_, err := f.svc.Upload(context.Background(), "report.pdf", strings.NewReader("%PDF"))
	require.ErrorIs(t, err, ErrEmbedding)
	assert.Empty(t, f.vectors.RecreateCalls)
	assert.Equal(t, 8, f.vectors.Dimension("report"))
}

func TestUpload_WorksWithoutLedgerOrPublisher(t *testing.T) {
	vectors := vectorstoretest.New()
	proc := pipeline.NewProcessor(stubExtractor{text: "hello world"}, pipeline.NewRecursiveSplitter(1000, 150),
		&hashEmbedder{dim: 16}, vectors, nil)
	svc := NewIngestService(newMemObjectStore(), proc, nil, nil, nil, 0)

	summary, err := svc.Upload(context.Background(), "hello.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalChunks)

	uploads, err := svc.ListUploads(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, uploads)
	assert.Empty(t, uploads)
}

func TestListUploads_NewestFirst(t *testing.T) {
	f := newIngestFixture("body", nil)
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		_, err := f.svc.Upload(ctx, name, strings.NewReader("%PDF"))
		require.NoError(t, err)
	}

	uploads, err := f.svc.ListUploads(ctx, 2)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "c.pdf", uploads[0].OriginalFilename)
	assert.Equal(t, "b.pdf", uploads[1].OriginalFilename)

	all, err := f.svc.ListUploads(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
