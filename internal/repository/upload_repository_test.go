package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docqa-go/internal/model"
)

func newMockUploadRepo(t *testing.T) (*uploadRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &uploadRepository{db: db, now: func() time.Time { return fixed }}, mock
}

func TestUploadRepository_Create(t *testing.T) {
	repo, mock := newMockUploadRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `document_uploads`").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	rec := &model.DocumentUpload{
		OriginalFilename: "report.pdf",
		StoredFilename:   "report_20250301_100000.pdf",
		CollectionName:   "report",
		Status:           model.UploadStatusFailed,
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	assert.EqualValues(t, 42, rec.ID)
	assert.Equal(t, model.UploadStatusProcessing, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_MarkCompleted(t *testing.T) {
	repo, mock := newMockUploadRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `document_uploads` SET").
		WithArgs(sqlmock.AnyArg(), model.UploadStatusCompleted, 4, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkCompleted(context.Background(), 7, 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_MarkFailed(t *testing.T) {
	repo, mock := newMockUploadRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `document_uploads` SET").
		WithArgs(sqlmock.AnyArg(), "embedding failed", model.UploadStatusFailed, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkFailed(context.Background(), 9, "embedding failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepository_ListRecent(t *testing.T) {
	repo, mock := newMockUploadRepo(t)

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "original_filename", "stored_filename", "collection_name", "total_chunks", "status", "created_at"}).
		AddRow(2, "b.pdf", "b_20250301_100000.pdf", "b", 3, model.UploadStatusCompleted, now).
		AddRow(1, "a.pdf", "a_20250301_090000.pdf", "a", 0, model.UploadStatusFailed, now.Add(-time.Hour))
	mock.ExpectQuery("SELECT \\* FROM `document_uploads` ORDER BY created_at DESC,id DESC LIMIT").
		WillReturnRows(rows)

	got, err := repo.ListRecent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.pdf", got[0].OriginalFilename)
	assert.Equal(t, 3, got[0].TotalChunks)
	assert.Equal(t, "failed", got[1].StatusText())
	assert.NoError(t, mock.ExpectationsWereMet())
}
