package core

import "time"

// TrainingExample 是一条训练样本：一次用户-物品交互及其特征快照。
// 不可变值对象，由上游行为日志产出，经 Transport 进入训练链路。
type TrainingExample struct {
	UserID          string    `json:"user_id"`
	ItemID          string    `json:"item_id"`
	Label           float64   `json:"label"` // 交互强度，[0, 1]
	UserFeatures    []float64 `json:"user_features"`
	ItemFeatures    []float64 `json:"item_features"`
	ContextFeatures []float64 `json:"context_features"`
	Timestamp       time.Time `json:"timestamp"`
}

// ModelSnapshot 是嵌入全量的版本化快照，用于周期性落盘（checkpoint）。
// Version 由快照时间戳派生，保证单调可排序。
type ModelSnapshot struct {
	Version        string               `json:"version"`
	UserEmbeddings map[string][]float64 `json:"user_embeddings"`
	ItemEmbeddings map[string][]float64 `json:"item_embeddings"`
	CreatedAt      time.Time            `json:"created_at"`
}

// TrainingBatch 是一次 flush 处理的样本批次（含负采样增广后的样本），
// 追加进审计缓冲，供离线回放与问题排查。
type TrainingBatch struct {
	BatchID   string            `json:"batch_id"`
	Examples  []TrainingExample `json:"examples"`
	CreatedAt time.Time         `json:"created_at"`
}
