// Package kafka 提供了向 Kafka 发布入库事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"

	"docqa-go/internal/config"
	"docqa-go/pkg/events"
	"docqa-go/pkg/log"
)

// Publisher 发布文档入库事件。
type Publisher interface {
	PublishIngested(ctx context.Context, event events.DocumentIngested) error
	Close() error
}

// messageWriter 是 *kafka.Writer 中被用到的方法子集。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type producer struct {
	writer messageWriter
}

// NewPublisher 根据配置创建 Kafka 生产者；未配置 brokers 时返回不做任何事的实现。
func NewPublisher(cfg config.KafkaConfig) Publisher {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		log.Info("未配置 Kafka brokers，入库事件不会发布")
		return noopPublisher{}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &producer{writer: w}
}

// PublishIngested 以集合名为 key 发送一条 JSON 事件。
func (p *producer) PublishIngested(ctx context.Context, event events.DocumentIngested) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   event.Key(),
		Value: value,
	})
}

func (p *producer) Close() error {
	return p.writer.Close()
}

type noopPublisher struct{}

func (noopPublisher) PublishIngested(context.Context, events.DocumentIngested) error { return nil }

func (noopPublisher) Close() error { return nil }
