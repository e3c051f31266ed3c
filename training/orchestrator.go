// Package training 提供在线训练编排：样本缓冲、负采样增广、
// 批量训练驱动、嵌入传播与周期性模型快照。
package training

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/veckit/core"
	"github.com/rushteam/veckit/model"
)

// 每条正样本最多合成的负样本数。
const maxNegativesPerPositive = 5

// Options 是编排器配置。
type Options struct {
	// BatchSize 触发 flush 的缓冲样本数（默认 1024）
	BatchSize int

	// FlushInterval 距上次 flush 的超时触发间隔（默认 30s）。
	// 缓冲达到 BatchSize 或超时先到者触发，实现为
	// "下一条样本到达" 与 "定时器到期" 之间的竞态。
	FlushInterval time.Duration

	// SnapshotInterval 模型快照周期（默认 3600s），与 flush 路径独立调度
	SnapshotInterval time.Duration

	// NegativeSamplingRatio 每条正样本的负采样比例（默认 4.0，上限 5）
	NegativeSamplingRatio float64

	// IntakeBuffer 样本接入通道容量（默认 1000）。
	// 通道满时上游生产者阻塞在 send 上——这是唯一的背压机制。
	IntakeBuffer int

	// Seed 负采样随机源种子；0 表示使用时间种子
	Seed int64
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.BatchSize <= 0 {
		out.BatchSize = 1024
	}
	if out.FlushInterval <= 0 {
		out.FlushInterval = 30 * time.Second
	}
	if out.SnapshotInterval <= 0 {
		out.SnapshotInterval = time.Hour
	}
	if out.NegativeSamplingRatio <= 0 {
		out.NegativeSamplingRatio = 4.0
	}
	if out.IntakeBuffer <= 0 {
		out.IntakeBuffer = 1000
	}
	return out
}

// Orchestrator 驱动在线训练循环。
//
// 三个逻辑工作流并发运行：样本接入/flush 循环、周期快照循环、
// 以及外部请求侧的读路径（predict / search）。嵌入表由 Algorithm
// 内部的读写锁保护；VectorIndex 是独立加锁的资源——更新存储项与
// 更新索引项是两次顺序独立加锁的操作，不构成事务，读者可能短暂
// 观察到滞后一拍的索引项（最终一致窗口）。
//
// 锁序约定：先嵌入存储，后向量索引；临界区保持短小。
// flush 或快照失败只记日志，不中断后续循环（fail-soft）。
type Orchestrator struct {
	algorithm core.Algorithm
	index     core.VectorIndex
	userIndex core.VectorIndex
	store     core.EmbeddingStore
	transport core.Transport
	sink      core.CheckpointSink

	opts        Options
	initializer *model.Initializer
	logger      *zap.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	audit      []core.TrainingBatch
	flushCount uint64
	snapCount  uint64
}

// New 创建编排器。algorithm/index/transport 必填，index 收物品向量；
// userIndex 收用户向量（相似用户检索用），与 store/sink 一样可为 nil
// （对应传播与快照步骤跳过该目标）。
func New(
	algorithm core.Algorithm,
	index core.VectorIndex,
	userIndex core.VectorIndex,
	store core.EmbeddingStore,
	transport core.Transport,
	sink core.CheckpointSink,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := opts.withDefaults()
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Orchestrator{
		algorithm:   algorithm,
		index:       index,
		userIndex:   userIndex,
		store:       store,
		transport:   transport,
		sink:        sink,
		opts:        o,
		initializer: model.NewInitializer(model.XavierUniform, index.Dimension()),
		logger:      logger,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Start 启动接入/flush 循环与快照循环，阻塞直到 ctx 取消。
// 循环自身没有对外暴露的取消语义：进程关闭即终点。
func (o *Orchestrator) Start(ctx context.Context) error {
	examples, err := o.transport.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.intakeLoop(ctx, examples)
		return nil
	})
	g.Go(func() error {
		o.snapshotLoop(ctx)
		return nil
	})
	o.logger.Info("training workers started",
		zap.Int("batch_size", o.opts.BatchSize),
		zap.Duration("flush_interval", o.opts.FlushInterval),
		zap.Duration("snapshot_interval", o.opts.SnapshotInterval))
	return g.Wait()
}

// intakeLoop 缓冲样本并在 BatchSize 或超时触发时 flush。
// 状态循环 IDLE → ACCUMULATING → FLUSHING → IDLE，进程存续期间不终止。
func (o *Orchestrator) intakeLoop(ctx context.Context, examples <-chan core.TrainingExample) {
	buffer := make([]core.TrainingExample, 0, o.opts.BatchSize)
	timer := time.NewTimer(o.opts.FlushInterval)
	defer timer.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := o.Flush(ctx, buffer); err != nil {
			o.logger.Error("flush failed", zap.Int("examples", len(buffer)), zap.Error(err))
		}
		buffer = buffer[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case example, ok := <-examples:
			if !ok {
				o.logger.Warn("training example channel closed")
				flush()
				return
			}
			buffer = append(buffer, example)
			if len(buffer) >= o.opts.BatchSize {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(o.opts.FlushInterval)
			}
		case <-timer.C:
			flush()
			timer.Reset(o.opts.FlushInterval)
		}
	}
}

// Flush 执行一次完整的批处理：增广 → 训练 → 传播 → 审计。
func (o *Orchestrator) Flush(ctx context.Context, examples []core.TrainingExample) error {
	if len(examples) == 0 {
		return nil
	}
	o.logger.Info("processing training batch", zap.Int("examples", len(examples)))

	augmented := o.Augment(examples)

	if err := o.algorithm.Train(ctx, augmented); err != nil {
		return fmt.Errorf("train batch: %w", err)
	}

	o.propagate(ctx, augmented)

	o.mu.Lock()
	o.audit = append(o.audit, core.TrainingBatch{
		BatchID:   uuid.NewString(),
		Examples:  augmented,
		CreatedAt: time.Now(),
	})
	o.flushCount++
	o.mu.Unlock()

	return nil
}

// Augment 为每条 label > 0.5 的正样本合成负样本：
// 同一用户、全新随机物品 ID、随机初始化的物品特征、label 置 0、
// 上下文与时间戳沿用源正样本。负样本数 = min(ratio, 5)。
func (o *Orchestrator) Augment(examples []core.TrainingExample) []core.TrainingExample {
	augmented := make([]core.TrainingExample, 0, len(examples))
	augmented = append(augmented, examples...)

	numNegatives := int(o.opts.NegativeSamplingRatio)
	if numNegatives > maxNegativesPerPositive {
		numNegatives = maxNegativesPerPositive
	}

	for i := range examples {
		example := &examples[i]
		if example.Label <= 0.5 {
			continue
		}
		for n := 0; n < numNegatives; n++ {
			o.mu.Lock()
			itemFeatures := o.initializer.RandomEmbedding(o.rng)
			o.mu.Unlock()
			augmented = append(augmented, core.TrainingExample{
				UserID:          example.UserID,
				ItemID:          uuid.NewString(),
				Label:           0.0,
				UserFeatures:    example.UserFeatures,
				ItemFeatures:    itemFeatures,
				ContextFeatures: example.ContextFeatures,
				Timestamp:       example.Timestamp,
			})
		}
	}
	return augmented
}

// propagate 把批内每个标识符最终的特征向量推送到外部嵌入存储与
// 向量索引：物品向量进 index，用户向量进 userIndex（装配了才推）。
// 批内同一标识符出现多次时，后出现者覆盖（不做合并/平均）。
// 单个标识符失败记日志继续，不影响其余传播。
func (o *Orchestrator) propagate(ctx context.Context, examples []core.TrainingExample) {
	userVectors := make(map[string][]float64)
	itemVectors := make(map[string][]float64)
	for i := range examples {
		userVectors[examples[i].UserID] = examples[i].UserFeatures
		itemVectors[examples[i].ItemID] = examples[i].ItemFeatures
	}

	// 锁序：先嵌入存储，后向量索引
	for id, vec := range userVectors {
		if o.store != nil {
			if err := o.store.PutEmbedding(ctx, id, vec); err != nil {
				o.logger.Warn("failed to persist user embedding", zap.String("user_id", id), zap.Error(err))
			}
		}
		if o.userIndex != nil {
			if err := o.userIndex.Update(id, vec); err != nil {
				o.logger.Warn("failed to index user embedding", zap.String("user_id", id), zap.Error(err))
			}
		}
	}
	for id, vec := range itemVectors {
		if o.store != nil {
			if err := o.store.PutEmbedding(ctx, id, vec); err != nil {
				o.logger.Warn("failed to persist item embedding", zap.String("item_id", id), zap.Error(err))
			}
		}
		if err := o.index.Update(id, vec); err != nil {
			o.logger.Warn("failed to index item embedding", zap.String("item_id", id), zap.Error(err))
		}
	}
}

// snapshotLoop 按 SnapshotInterval 周期拍取模型快照并交给持久化协作方。
// 与 flush 路径互不协调：快照读到的只需是嵌入表某一瞬间的内部一致状态。
func (o *Orchestrator) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(o.opts.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.SaveSnapshot(ctx); err != nil {
				o.logger.Error("snapshot failed", zap.Error(err))
			}
		}
	}
}

// SaveSnapshot 拍取一次快照并写入 CheckpointSink。
func (o *Orchestrator) SaveSnapshot(ctx context.Context) error {
	snapshot := o.algorithm.Snapshot()
	if o.sink != nil {
		if err := o.sink.SaveSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("save snapshot %s: %w", snapshot.Version, err)
		}
	}
	o.mu.Lock()
	o.snapCount++
	o.mu.Unlock()
	o.logger.Info("model snapshot saved",
		zap.String("version", snapshot.Version),
		zap.Int("users", len(snapshot.UserEmbeddings)),
		zap.Int("items", len(snapshot.ItemEmbeddings)))
	return nil
}

// AuditLog 返回审计缓冲的副本（无界增长，由外部 ResetAudit 控制）。
func (o *Orchestrator) AuditLog() []core.TrainingBatch {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.TrainingBatch, len(o.audit))
	copy(out, o.audit)
	return out
}

// ResetAudit 清空审计缓冲。
func (o *Orchestrator) ResetAudit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audit = nil
}

// Stats 返回 flush / 快照计数（观测用）。
func (o *Orchestrator) Stats() (flushes, snapshots uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushCount, o.snapCount
}
