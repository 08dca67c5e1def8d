// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
	"docqa-go/pkg/retry"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion 表示模型没有返回任何文本。
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

// Client defines the interface for an LLM client.
type Client interface {
	// Generate 发送单条 user 消息并返回完整回答（非流式）。
	Generate(ctx context.Context, prompt string) (string, error)
}

// chatClient 通过 OpenAI 兼容接口调用 Gemini 等模型。
type chatClient struct {
	cfg    config.LLMConfig
	policy retry.Policy
	client *openai.Client
}

// NewClient creates a new LLM client based on the config.
func NewClient(cfg config.LLMConfig) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &chatClient{
		cfg:    cfg,
		policy: retry.NewPolicy(cfg.Retry.TimeoutSeconds, cfg.Retry.MaxRetries, cfg.Retry.InitialIntervalMS),
		client: openai.NewClientWithConfig(oc),
	}
}

func (c *chatClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// 零值表示使用模型默认值
	if c.cfg.Generation.Temperature != 0 {
		req.Temperature = float32(c.cfg.Generation.Temperature)
	}
	if c.cfg.Generation.TopP != 0 {
		req.TopP = float32(c.cfg.Generation.TopP)
	}
	if c.cfg.Generation.MaxTokens != 0 {
		req.MaxTokens = c.cfg.Generation.MaxTokens
	}

	log.Infof("[LLMClient] 开始调用模型 %s, prompt_len: %d", c.cfg.Model, len(prompt))
	var answer string
	err := retry.Do(ctx, c.policy, nil, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			log.Warnf("[LLMClient] 调用模型失败: %v", err)
			return asStatusError(err)
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyCompletion
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// asStatusError 把 go-openai 的错误转换为 retry.StatusError，便于统一判断是否重试。
func asStatusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%w: %s", &retry.StatusError{StatusCode: apiErr.HTTPStatusCode}, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &retry.StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
