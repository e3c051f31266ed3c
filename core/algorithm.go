package core

import "context"

// Algorithm 是推荐学习算法的领域接口（能力集：训练 / 预测 / 嵌入读取 / 参数替换）。
//
// 设计原则：
//   - 可插拔：今天是双线性协同过滤，之后可以替换其他浅层算法，
//     上层编排（training.Orchestrator）不感知具体实现
//   - 接口多态而非继承
//
// 实现：
//   - model.CollaborativeFiltering 实现此接口
type Algorithm interface {
	// Train 对一批样本执行增量训练。整批持有排他锁，
	// 读路径不会观察到半批次状态。
	Train(ctx context.Context, examples []TrainingExample) error

	// Predict 计算外部给定向量对的交互分数，不触碰内部状态
	Predict(userVector, itemVector []float64) (float64, error)

	// UserEmbedding 读取用户嵌入的副本；不存在返回 false，不触发惰性创建
	UserEmbedding(userID string) ([]float64, bool)

	// ItemEmbedding 读取物品嵌入的副本；不存在返回 false，不触发惰性创建
	ItemEmbedding(itemID string) ([]float64, bool)

	// Snapshot 拍取当前嵌入全量的版本化快照
	Snapshot() *ModelSnapshot

	// UpdateParameters 用快照整体替换内部参数（模型热加载）
	UpdateParameters(snapshot *ModelSnapshot) error
}
