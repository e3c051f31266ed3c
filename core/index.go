package core

// ScoredVector 是向量检索的单个结果项。
type ScoredVector struct {
	// ID 向量标识
	ID string

	// Score 相似度分数，统一为越大越近，结果按由近及远排列。
	// Linear 实现返回余弦相似度；Graph 实现返回由平方欧氏距离
	// 换算的相似度 1/(1+d)。
	Score float64
}

// VectorIndex 是向量索引的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（index）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//
// 实现：
//   - index.Linear：精确线性扫描，O(n·D)，小规模缓存层适用
//   - index.Graph：多层近邻图的近似检索，亚线性期望查询开销
//
// 约束：
//   - 所有入索引向量长度必须等于索引声明维度；不一致直接拒绝
//     （INVALID_INPUT），绝不截断或补零
//   - Add/Update 对重复 ID 覆盖写；Remove 对不存在的 ID 幂等
type VectorIndex interface {
	// Add 插入向量；重复 ID 覆盖
	Add(id string, vector []float64) error

	// Update 更新向量；语义与 Add 相同
	Update(id string, vector []float64) error

	// Remove 删除向量；不存在时为 no-op
	Remove(id string) error

	// SearchSimilar 返回与 query 最邻近的 k 个结果，按由近及远排列
	SearchSimilar(query []float64, k int) ([]ScoredVector, error)

	// Dimension 返回索引声明的向量维度
	Dimension() int

	// Len 返回当前索引内的向量数量
	Len() int
}
