// Package notify 把批处理中需要人工介入的事件发送到消息队列。
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

// Publisher 定义通用的消息发送接口
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// KafkaPublisher 基于 kafka-go 的发送者，topic 由每条消息指定
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher 创建 Kafka 发送者
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	p := &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
	logger.Log.WithField("brokers", brokers).Debug("kafka publisher initialized")
	return p, nil
}

// Publish 以 JSON 发送一条消息
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(uuid.NewString()),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s message: %w", topic, err)
	}
	return nil
}

// Close 关闭底层 writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher 未配置 broker 时只把消息写进日志
type LogPublisher struct{}

var _ Publisher = LogPublisher{}

// Publish 写一条 warn 日志
func (LogPublisher) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	logger.Log.WithField("topic", topic).Warn(string(data))
	return nil
}

// Close 无操作
func (LogPublisher) Close() error { return nil }

// NewPublisher 根据配置创建发送者
func NewPublisher(cfg config.KafkaConfig) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		logger.Log.Warn("kafka brokers not configured, notifications go to the log only")
		return LogPublisher{}, nil
	}
	return NewKafkaPublisher(cfg.Brokers)
}

// Notifier 按事件类型发送通知，发送失败只记录日志
type Notifier struct {
	pub    Publisher
	topics config.TopicConfig
}

// NewNotifier 创建通知器
func NewNotifier(pub Publisher, topics config.TopicConfig) *Notifier {
	return &Notifier{pub: pub, topics: topics}
}

// NewTicker 标的缺少代码，需要人工补全
func (n *Notifier) NewTicker(ctx context.Context, msg model.NewTickerMessage) {
	n.send(ctx, n.topics.NewTicker, msg, logrus.Fields{"product": msg.ProductName, "underlying": msg.Underlying})
}

// CorrectionReport 说明书为更正申报
func (n *Notifier) CorrectionReport(ctx context.Context, msg model.CorrectionReportMessage) {
	n.send(ctx, n.topics.CorrectionReport, msg, logrus.Fields{"product": msg.ProductName, "url": msg.FilingURL})
}

// NewIssuer 产品名中的发行方不在发行方表中
func (n *Notifier) NewIssuer(ctx context.Context, msg model.NewIssuerMessage) {
	n.send(ctx, n.topics.NewIssuer, msg, logrus.Fields{"product": msg.ProductName})
}

func (n *Notifier) send(ctx context.Context, topic string, payload any, fields logrus.Fields) {
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		logger.Log.WithFields(fields).Errorf("发送通知失败 [%s]: %v", topic, err)
	}
}
