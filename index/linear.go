// Package index 提供 core.VectorIndex 的两种实现：
//   - Linear：精确线性扫描（余弦相似度）
//   - Graph：多层近邻图的近似检索（欧氏度量，Score 换算为相似度）
//
// 两种实现的 Score 都是越大越近，可互换注入 service.Recommender。
package index

import (
	"fmt"
	"sync"

	"github.com/rushteam/veckit/core"
	"github.com/rushteam/veckit/pkg/vecmath"
)

// Linear 是精确的线性扫描索引。
//
// 特点：
//   - 纯内存实现，线程安全
//   - 查询开销 O(n·D)；索引内容是持久层之前的有界缓存，不是全量库，
//     因此线性开销可接受
//   - 结果按余弦相似度降序；同分顺序依赖 map 遍历，属已知的非确定点
type Linear struct {
	mu        sync.RWMutex
	vectors   map[string][]float64
	dimension int
}

// NewLinear 创建维度为 dimension 的线性索引。
func NewLinear(dimension int) *Linear {
	return &Linear{
		vectors:   make(map[string][]float64),
		dimension: dimension,
	}
}

func (l *Linear) Dimension() int { return l.dimension }

func (l *Linear) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vectors)
}

// Add 插入向量；重复 ID 覆盖写。维度不一致拒绝，绝不截断或补零。
func (l *Linear) Add(id string, vector []float64) error {
	if len(vector) != l.dimension {
		return core.NewDomainError(core.ModuleIndex, core.ErrorCodeInvalidInput,
			fmt.Sprintf("vector dimension mismatch: expected %d, got %d", l.dimension, len(vector)))
	}
	cp := make([]float64, len(vector))
	copy(cp, vector)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.vectors[id] = cp
	return nil
}

// Update 语义与 Add 相同。
func (l *Linear) Update(id string, vector []float64) error {
	return l.Add(id, vector)
}

// Remove 删除向量；不存在时为 no-op。
func (l *Linear) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.vectors, id)
	return nil
}

// SearchSimilar 返回与 query 余弦相似度最高的 k 个结果（降序）。
// k 大于等于索引规模时返回全量排序结果。
func (l *Linear) SearchSimilar(query []float64, k int) ([]core.ScoredVector, error) {
	if len(query) != l.dimension {
		return nil, core.NewDomainError(core.ModuleIndex, core.ErrorCodeInvalidInput,
			fmt.Sprintf("query dimension mismatch: expected %d, got %d", l.dimension, len(query)))
	}
	if k <= 0 {
		k = 10
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.vectors))
	scores := make([]float64, 0, len(l.vectors))
	for id, vec := range l.vectors {
		ids = append(ids, id)
		scores = append(scores, vecmath.CosineSimilarity(query, vec))
	}

	top := vecmath.TopKIndices(scores, k)
	results := make([]core.ScoredVector, 0, len(top))
	for _, i := range top {
		results = append(results, core.ScoredVector{ID: ids[i], Score: scores[i]})
	}
	return results, nil
}

// 确保实现了接口
var _ core.VectorIndex = (*Linear)(nil)
