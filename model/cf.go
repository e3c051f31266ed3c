// Package model 提供推荐学习算法实现。
// 当前内置双线性协同过滤（浅层矩阵分解），通过 core.Algorithm 接口接入编排层。
package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/veckit/core"
	"github.com/rushteam/veckit/pkg/vecmath"
)

// CollaborativeFiltering 是双线性协同过滤模型。
//
// 核心思想：预测分数 = 用户嵌入 · 物品嵌入；
// 误差 = label - 预测，以带 L2 正则的梯度对两侧嵌入做在线更新。
//
// 并发模型：
//   - users/items 两张嵌入表是唯一共享可变资源，由单把读写锁保护
//   - Predict / UserEmbedding 等读路径并发进行；Train 整批持有排他锁，
//     读者不会观察到半批次状态
//
// 更新规则是固定的朴素梯度步（emb += lr·grad），刻意不经过
// optimizer 包的可插拔更新器——嵌入更新与通用参数更新相互独立。
type CollaborativeFiltering struct {
	mu    sync.RWMutex
	users map[string][]float64
	items map[string][]float64

	dimension      int
	learningRate   float64
	regularization float64
	initializer    *Initializer
	logger         *zap.Logger
}

// CFOption 配置 CollaborativeFiltering。
type CFOption func(*CollaborativeFiltering)

// WithInitMethod 设置嵌入初始化方法（默认 XavierUniform）。
func WithInitMethod(method InitMethod) CFOption {
	return func(cf *CollaborativeFiltering) {
		cf.initializer = NewInitializer(method, cf.dimension)
	}
}

// WithLogger 注入日志器。
func WithLogger(logger *zap.Logger) CFOption {
	return func(cf *CollaborativeFiltering) {
		if logger != nil {
			cf.logger = logger
		}
	}
}

// NewCollaborativeFiltering 创建协同过滤模型。
func NewCollaborativeFiltering(dimension int, learningRate, regularization float64, opts ...CFOption) *CollaborativeFiltering {
	cf := &CollaborativeFiltering{
		users:          make(map[string][]float64),
		items:          make(map[string][]float64),
		dimension:      dimension,
		learningRate:   learningRate,
		regularization: regularization,
		logger:         zap.NewNop(),
	}
	cf.initializer = NewInitializer(XavierUniform, dimension)
	for _, opt := range opts {
		opt(cf)
	}
	return cf
}

// Dimension 返回嵌入维度。
func (cf *CollaborativeFiltering) Dimension() int { return cf.dimension }

// Train 对一批样本逐条执行在线梯度更新。
// 整批持有排他锁；单条非法样本记日志跳过，不中断批次。
func (cf *CollaborativeFiltering) Train(ctx context.Context, examples []core.TrainingExample) error {
	if len(examples) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()

	for i := range examples {
		example := &examples[i]
		if err := core.ValidateExample(example); err != nil {
			cf.logger.Warn("skipping malformed training example",
				zap.String("user_id", example.UserID),
				zap.String("item_id", example.ItemID),
				zap.Error(err))
			continue
		}
		cf.sgdUpdateLocked(example)
	}
	return nil
}

// sgdUpdateLocked 对单条样本执行梯度步。缺失的嵌入先惰性创建
// （确定性播种初始化），训练路径绝不因缺少先验状态而跳过样本。
func (cf *CollaborativeFiltering) sgdUpdateLocked(example *core.TrainingExample) {
	userEmb := cf.embeddingLocked(cf.users, example.UserID)
	itemEmb := cf.embeddingLocked(cf.items, example.ItemID)

	prediction := vecmath.Dot(userEmb, itemEmb)
	err := example.Label - prediction

	for i := 0; i < cf.dimension; i++ {
		userGrad := err*itemEmb[i] - cf.regularization*userEmb[i]
		itemGrad := err*userEmb[i] - cf.regularization*itemEmb[i]
		userEmb[i] += cf.learningRate * userGrad
		itemEmb[i] += cf.learningRate * itemGrad
	}
}

// embeddingLocked 取表内嵌入，缺失时惰性创建。调用方持有写锁。
func (cf *CollaborativeFiltering) embeddingLocked(table map[string][]float64, id string) []float64 {
	if emb, ok := table[id]; ok {
		return emb
	}
	emb := cf.initializer.InitEmbedding(id)
	table[id] = emb
	return emb
}

// Predict 计算外部给定向量对的点积，不触碰内部嵌入表。
func (cf *CollaborativeFiltering) Predict(userVector, itemVector []float64) (float64, error) {
	if len(userVector) != len(itemVector) {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("vector length mismatch: %d vs %d", len(userVector), len(itemVector)))
	}
	return vecmath.Dot(userVector, itemVector), nil
}

// ComputeLoss 计算一批样本的均方误差（诊断用）。
//
// 注意与训练路径的刻意不对称：端点嵌入尚不存在的样本被静默跳过，
// 不触发惰性创建——诊断只评估既有参数，不改写状态。
func (cf *CollaborativeFiltering) ComputeLoss(examples []core.TrainingExample) float64 {
	cf.mu.RLock()
	defer cf.mu.RUnlock()

	var total float64
	var count int
	for i := range examples {
		userEmb, okU := cf.users[examples[i].UserID]
		itemEmb, okI := cf.items[examples[i].ItemID]
		if !okU || !okI {
			continue
		}
		err := examples[i].Label - vecmath.Dot(userEmb, itemEmb)
		total += err * err
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// UserEmbedding 读取用户嵌入的副本；不存在返回 false。
func (cf *CollaborativeFiltering) UserEmbedding(userID string) ([]float64, bool) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return copyOf(cf.users[userID])
}

// ItemEmbedding 读取物品嵌入的副本；不存在返回 false。
func (cf *CollaborativeFiltering) ItemEmbedding(itemID string) ([]float64, bool) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return copyOf(cf.items[itemID])
}

// InitialUserEmbedding 返回该用户在无训练状态下的确定性初始向量，
// 不写入嵌入表（冷启动查询用）。
func (cf *CollaborativeFiltering) InitialUserEmbedding(userID string) []float64 {
	return cf.initializer.InitEmbedding(userID)
}

// Snapshot 拍取当前嵌入全量快照，版本号由时间戳派生。
// 快照只要求读到某一瞬间内部一致的表状态，不与训练 flush 做原子协调。
func (cf *CollaborativeFiltering) Snapshot() *core.ModelSnapshot {
	cf.mu.RLock()
	defer cf.mu.RUnlock()

	now := time.Now()
	return &core.ModelSnapshot{
		Version:        fmt.Sprintf("v%d", now.Unix()),
		UserEmbeddings: copyTable(cf.users),
		ItemEmbeddings: copyTable(cf.items),
		CreatedAt:      now,
	}
}

// UpdateParameters 用快照整体替换嵌入表（模型热加载）。
func (cf *CollaborativeFiltering) UpdateParameters(snapshot *core.ModelSnapshot) error {
	if snapshot == nil {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "snapshot is nil")
	}
	for id, emb := range snapshot.UserEmbeddings {
		if len(emb) != cf.dimension {
			return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("user embedding %q dimension mismatch: expected %d, got %d", id, cf.dimension, len(emb)))
		}
	}
	for id, emb := range snapshot.ItemEmbeddings {
		if len(emb) != cf.dimension {
			return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("item embedding %q dimension mismatch: expected %d, got %d", id, cf.dimension, len(emb)))
		}
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()
	cf.users = copyTable(snapshot.UserEmbeddings)
	cf.items = copyTable(snapshot.ItemEmbeddings)
	return nil
}

// Stats 返回嵌入表规模（观测用）。
func (cf *CollaborativeFiltering) Stats() (userCount, itemCount int) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return len(cf.users), len(cf.items)
}

func copyOf(emb []float64) ([]float64, bool) {
	if emb == nil {
		return nil, false
	}
	cp := make([]float64, len(emb))
	copy(cp, emb)
	return cp, true
}

func copyTable(table map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(table))
	for id, emb := range table {
		cp := make([]float64, len(emb))
		copy(cp, emb)
		out[id] = cp
	}
	return out
}

// 确保实现了接口
var _ core.Algorithm = (*CollaborativeFiltering)(nil)
