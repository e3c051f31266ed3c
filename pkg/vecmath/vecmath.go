// Package vecmath 提供嵌入向量的基础数值运算。
// 热路径函数不做有限性检查（NaN/Inf 在摄入边界拒绝）。
package vecmath

import (
	"math"
	"sort"
)

// Dot 计算两个向量的点积。长度不一致返回 0。
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// CosineSimilarity 计算余弦相似度。零向量或长度不一致返回 0。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance 计算欧氏距离。长度不一致返回 +Inf。
func EuclideanDistance(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// SquaredEuclidean 计算平方欧氏距离（近邻图的距离度量，省一次开方）。
func SquaredEuclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// TopKIndices 返回分数最高的 k 个下标，按分数降序。
func TopKIndices(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return scores[idx[i]] > scores[idx[j]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// IsFinite 检查向量所有分量是否均为有限值。
func IsFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
