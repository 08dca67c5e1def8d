// Package pdf 使用 ledongthuc/pdf 在进程内提取 PDF 纯文本。
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa-go/pkg/log"
)

// Extractor 逐页读取 PDF 文本，页与页之间以换行分隔。
type Extractor struct{}

// NewExtractor 创建一个原生 PDF 文本提取器。
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract 返回整份文档的文本。无法解析的文件返回错误；单页失败只记录日志并跳过。
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName string) (text string, err error) {
	// ledongthuc/pdf 遇到损坏的对象时可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析 PDF '%s' 失败: %v", fileName, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warnf("[PDFExtractor] 文件 '%s' 第 %d 页提取失败: %v", fileName, i, err)
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	log.Infof("[PDFExtractor] 文件 '%s' 共 %d 页, 提取文本长度: %d", fileName, numPages, sb.Len())
	return sb.String(), nil
}
