// Package metrics 提供推荐结果的离线评估指标。
//
// 全部是无状态纯函数，输入推荐列表与真值集合，输出 [0,1] 区间
// （Diversity/Novelty 除外）的数值。供离线回放与 A/B 基线评估使用。
package metrics

import (
	"math"
	"sort"

	"github.com/rushteam/veckit/pkg/vecmath"
)

// PrecisionAtK 计算前 k 个推荐中命中真值的比例。
// 分母取 min(k, len(recommended))，推荐不足 k 个时不稀释精度。
func PrecisionAtK(recommended, relevant []string, k int) float64 {
	if len(recommended) == 0 || k <= 0 {
		return 0
	}
	hits := hitCount(recommended, relevant, k)
	denom := k
	if len(recommended) < denom {
		denom = len(recommended)
	}
	return float64(hits) / float64(denom)
}

// RecallAtK 计算真值集合中被前 k 个推荐覆盖的比例。
func RecallAtK(recommended, relevant []string, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	hits := hitCount(recommended, relevant, k)
	return float64(hits) / float64(len(relevant))
}

// F1 是精确率与召回率的调和平均。两者皆零时返回 0。
func F1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// NDCGAtK 计算归一化折损累计增益。
// relevantScores 是 item 到相关度分值的映射，未出现的 item 相关度为 0。
// 折损使用 log2(position+1)，position 从 1 开始。
func NDCGAtK(recommended []string, relevantScores map[string]float64, k int) float64 {
	dcg := dcgAtK(recommended, relevantScores, k)
	idcg := idealDCGAtK(relevantScores, k)
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func dcgAtK(recommended []string, relevantScores map[string]float64, k int) float64 {
	sum := 0.0
	for i, id := range recommended {
		if i >= k {
			break
		}
		sum += relevantScores[id] / math.Log2(float64(i)+2)
	}
	return sum
}

func idealDCGAtK(relevantScores map[string]float64, k int) float64 {
	scores := make([]float64, 0, len(relevantScores))
	for _, s := range relevantScores {
		scores = append(scores, s)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	sum := 0.0
	for i, s := range scores {
		if i >= k {
			break
		}
		sum += s / math.Log2(float64(i)+2)
	}
	return sum
}

// MAP 计算多次查询的平均精度均值。
// 两个切片按查询对齐；长度不一致或为空时返回 0。
func MAP(allRecommended, allRelevant [][]string, k int) float64 {
	if len(allRecommended) == 0 || len(allRecommended) != len(allRelevant) {
		return 0
	}
	total := 0.0
	for i := range allRecommended {
		total += averagePrecision(allRecommended[i], allRelevant[i], k)
	}
	return total / float64(len(allRecommended))
}

func averagePrecision(recommended, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relevantSet := toSet(relevant)
	found := 0
	sum := 0.0
	for i, id := range recommended {
		if i >= k {
			break
		}
		if relevantSet[id] {
			found++
			sum += float64(found) / float64(i+1)
		}
	}
	if found == 0 {
		return 0
	}
	return sum / float64(len(relevant))
}

// Coverage 计算全量物品集合中被推荐触达的比例。
func Coverage(recommendedItems, allItems []string) float64 {
	if len(allItems) == 0 {
		return 0
	}
	recommendedSet := toSet(recommendedItems)
	covered := 0
	for _, id := range allItems {
		if recommendedSet[id] {
			covered++
		}
	}
	return float64(covered) / float64(len(allItems))
}

// Diversity 计算推荐列表内两两欧氏距离的均值。
// 缺少特征的配对被跳过；不足两个候选或无可比配对时返回 0。
func Diversity(recommendedItems []string, itemFeatures map[string][]float64) float64 {
	if len(recommendedItems) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(recommendedItems); i++ {
		fi, oki := itemFeatures[recommendedItems[i]]
		if !oki {
			continue
		}
		for j := i + 1; j < len(recommendedItems); j++ {
			fj, okj := itemFeatures[recommendedItems[j]]
			if !okj || len(fi) != len(fj) {
				continue
			}
			total += vecmath.EuclideanDistance(fi, fj)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// Novelty 计算推荐列表的平均自信息 -log2(popularity)。
// popularity 以 (0,1] 的出现概率表示；未知或非正的流行度贡献 0。
func Novelty(recommendedItems []string, itemPopularity map[string]float64) float64 {
	if len(recommendedItems) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range recommendedItems {
		if p := itemPopularity[id]; p > 0 {
			total += -math.Log2(p)
		}
	}
	return total / float64(len(recommendedItems))
}

func hitCount(recommended, relevant []string, k int) int {
	relevantSet := toSet(relevant)
	hits := 0
	for i, id := range recommended {
		if i >= k {
			break
		}
		if relevantSet[id] {
			hits++
		}
	}
	return hits
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
