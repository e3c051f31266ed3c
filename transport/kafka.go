package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/rushteam/veckit/core"
)

// KafkaConfig 是 Kafka 传输配置。
type KafkaConfig struct {
	// Brokers Kafka Broker 地址列表
	Brokers []string

	// Topic 训练样本 Topic
	Topic string

	// GroupID 消费组 ID
	GroupID string

	// ClientID 客户端 ID
	ClientID string

	// Buffer 投递通道容量（消费落后时阻塞拉取，背压传导到 broker 偏移）
	Buffer int
}

// Kafka 是 franz-go 实现的训练样本传输。
//
// 样本以 JSON 编码，key 为用户 ID（同一用户的事件落同一分区，
// 保序由分区内顺序提供）。反序列化失败的消息记日志跳过，
// 不中断消费循环。
type Kafka struct {
	client *kgo.Client
	topic  string
	buffer int
	logger *zap.Logger

	once sync.Once
	ch   chan core.TrainingExample
}

// NewKafka 创建 Kafka 传输。
func NewKafka(config KafkaConfig, logger *zap.Logger) (*Kafka, error) {
	if config.ClientID == "" {
		config.ClientID = "veckit-training"
	}
	if config.Buffer <= 0 {
		config.Buffer = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(config.ClientID),
		kgo.ConsumeTopics(config.Topic),
	}
	if config.GroupID != "" {
		opts = append(opts, kgo.ConsumerGroup(config.GroupID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &Kafka{
		client: client,
		topic:  config.Topic,
		buffer: config.Buffer,
		logger: logger,
	}, nil
}

// Consume 启动拉取循环并返回样本通道。通道容量有界；
// 下游消费落后时投递阻塞，拉取循环随之暂停（唯一的背压机制）。
func (k *Kafka) Consume(ctx context.Context) (<-chan core.TrainingExample, error) {
	k.once.Do(func() {
		k.ch = make(chan core.TrainingExample, k.buffer)
		go k.pollLoop(ctx)
	})
	return k.ch, nil
}

func (k *Kafka) pollLoop(ctx context.Context) {
	defer close(k.ch)

	for {
		fetches := k.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			k.logger.Error("kafka fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
		})
		fetches.EachRecord(func(record *kgo.Record) {
			var example core.TrainingExample
			if err := json.Unmarshal(record.Value, &example); err != nil {
				k.logger.Warn("failed to decode training example",
					zap.String("topic", record.Topic),
					zap.Int64("offset", record.Offset),
					zap.Error(err))
				return
			}
			select {
			case k.ch <- example:
			case <-ctx.Done():
			}
		})
	}
}

// Publish 同步发布一条训练样本。
func (k *Kafka) Publish(ctx context.Context, example core.TrainingExample) error {
	payload, err := json.Marshal(example)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(example.UserID),
		Value: payload,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return core.NewDomainError(core.ModuleTransport, core.ErrorCodeUnavailable,
			"kafka produce failed: "+err.Error())
	}
	return nil
}

func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}

// 确保实现了接口
var _ core.Transport = (*Kafka)(nil)
