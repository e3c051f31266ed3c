package core

import "context"

// Transport 是训练样本传输层的协作方接口（消息中间件的领域抽象）。
//
// 实现：
//   - transport.Kafka 实现此接口（franz-go，生产环境）
//   - transport.Memory 实现此接口（测试/原型）
type Transport interface {
	// Consume 返回样本通道。通道容量有界：编排方消费落后时，
	// 上游生产方在 send 上阻塞（背压），系统不丢事件。
	// ctx 取消后通道关闭。
	Consume(ctx context.Context) (<-chan TrainingExample, error)

	// Publish 发布一条训练样本
	Publish(ctx context.Context, example TrainingExample) error

	// Close 关闭连接
	Close() error
}

// CheckpointSink 接收周期性模型快照的持久化协作方。
// 真实部署可落 HDFS/S3/对象存储；测试里用闭包收集。
type CheckpointSink interface {
	SaveSnapshot(ctx context.Context, snapshot *ModelSnapshot) error
}

// CheckpointSinkFunc 把普通函数适配为 CheckpointSink。
type CheckpointSinkFunc func(ctx context.Context, snapshot *ModelSnapshot) error

func (f CheckpointSinkFunc) SaveSnapshot(ctx context.Context, snapshot *ModelSnapshot) error {
	return f(ctx, snapshot)
}
