package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/lotr-chat/internal/logger"
	"go.uber.org/zap"
)

// 事件类型
const (
	EventMessageCreated  = "message.created"
	EventMessageFeedback = "message.feedback"
)

// MessageEvent 消息事件，按conversation_id分区保证同一对话有序
type MessageEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Question       string    `json:"question,omitempty"`
	Answer         string    `json:"answer,omitempty"`
	Feedback       string    `json:"feedback,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewSaramaConfig 生产者配置
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	return config
}

// NewProducer 创建Kafka生产者
func NewProducer(brokers []string, topic string, log *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	p := NewProducerWith(producer, topic, log)
	p.logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return p, nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(producer sarama.SyncProducer, topic string, log *zap.Logger) *Producer {
	if log == nil {
		log = logger.Named("kafka")
	}
	return &Producer{producer: producer, topic: topic, logger: log}
}

// Publish 发送消息事件
func (p *Producer) Publish(ctx context.Context, event MessageEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ConversationID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("发送Kafka消息失败", zap.String("type", event.Type), zap.Error(err))
		return fmt.Errorf("发送消息失败: %w", err)
	}

	p.logger.Debug("Kafka消息发送成功",
		zap.String("type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("conversation_id", event.ConversationID))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
