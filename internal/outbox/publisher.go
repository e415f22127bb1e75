package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/internal/model"
)

// Publisher 向下游投递单个 outbox 事件
type Publisher interface {
	Publish(ctx context.Context, ev *model.OutboxEvent) error
}

// HeaderEventType Kafka 消息头中的事件主题
const HeaderEventType = "event_type"

// KafkaPublisher 以订单 ID 为 key 写入单一 topic，同一订单的事件在分区内有序
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher 创建 franz-go 生产者
func NewKafkaPublisher(brokers []string, topic string, opts ...kgo.Opt) (*KafkaPublisher, error) {
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1 << 20),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev *model.OutboxEvent) error {
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.Key),
		Value: []byte(ev.Payload),
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(ev.Topic)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", ev.Topic, err)
	}
	return nil
}

// Close 刷新缓冲并关闭客户端
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}

// LogPublisher 未启用 Kafka 时把事件写入日志
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev *model.OutboxEvent) error {
	p.log.Info("order event",
		zap.String("event_id", ev.ID),
		zap.String("topic", ev.Topic),
		zap.String("key", ev.Key),
		zap.String("payload", ev.Payload))
	return nil
}
