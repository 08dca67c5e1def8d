// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"

	"docqa-go/internal/pipeline"
)

// 业务错误分类，handler 通过 errors.Is 映射为 HTTP 状态码。
var (
	ErrBadRequest           = errors.New("bad request")
	ErrConflict             = errors.New("conflict")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrGeneration           = errors.New("answer generation failed")
	ErrStorage              = errors.New("file storage failed")

	ErrExtraction  = pipeline.ErrExtraction
	ErrEmbedding   = pipeline.ErrEmbedding
	ErrVectorStore = pipeline.ErrVectorStore
)

// detailError 携带返回给调用方的消息，同时保留错误分类。
type detailError struct {
	kind error
	msg  string
}

func (e *detailError) Error() string { return e.msg }

func (e *detailError) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...interface{}) error {
	return &detailError{kind: kind, msg: fmt.Sprintf(format, args...)}
}
