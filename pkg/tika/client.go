// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	timeout   time.Duration
	http      *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.ExtractorConfig) *Client {
	return &Client{
		serverURL: strings.TrimRight(cfg.TikaServerURL, "/"),
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		http:      &http.Client{},
	}
}

// Extract 自动根据文件后缀推断 MIME 类型，并调用 Tika 提取纯文本。
func (c *Client) Extract(ctx context.Context, data []byte, fileName string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(fileName))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	log.Infof("[TikaClient] 文件 '%s' 提取完成, 文本长度: %d", fileName, buf.Len())
	return buf.String(), nil
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileName string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
