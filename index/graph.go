package index

import (
	"container/heap"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/rushteam/veckit/core"
	"github.com/rushteam/veckit/pkg/vecmath"
)

const (
	// maxLayer 是层级抽签的上限：P(ℓ=k) = 2^-(k+1)，层级人口指数衰减
	maxLayer = 16

	defaultMaxConnections = 16
	defaultEfConstruction = 100
)

// Graph 是多层近邻图实现的近似向量索引（分层可导航小世界图）。
//
// 结构：
//   - 插入时以 p=0.5 的连续抛硬币抽取层级 ℓ（上限 16），
//     节点注册进 0..ℓ 的每一层
//   - 建图时在每个注册层上与最近的 M 个既有节点建立双向邻接，
//     邻接表超限时裁剪为离本节点最近的 M 个
//
// 检索：
//   - 入口点取最高非空层"遇到的第一个 key"——不保证是最优入口，
//     属于已知的近似松弛
//   - 高层逐层贪心：每层只向最近的单个可达邻居移动（beam=1），
//     作为下一层的入口
//   - 第 0 层做 best-first 束搜索（束宽 = 请求的 k），有界候选前沿
//     与有界结果集；前沿最近候选比当前最差结果还远时剪枝
//   - 内部距离度量：平方欧氏距离 d；对外 Score 统一换算为
//     相似度 1/(1+d)，与 Linear 一样越大越近
//
// 线程安全；随机源可注入（WithSeed），保证建图在测试下可复现。
type Graph struct {
	mu        sync.RWMutex
	layers    []map[string][]string // layer → node → 邻接表
	vectors   map[string][]float64
	dimension int

	maxConnections int
	efConstruction int
	rng            *rand.Rand
}

// GraphOption 配置 Graph 索引。
type GraphOption func(*Graph)

// WithSeed 注入固定随机种子，使层级抽签可复现。
func WithSeed(seed int64) GraphOption {
	return func(g *Graph) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithMaxConnections 设置每层的最大邻接数 M。
func WithMaxConnections(m int) GraphOption {
	return func(g *Graph) {
		if m > 0 {
			g.maxConnections = m
		}
	}
}

// WithEfConstruction 设置建图时的候选搜索宽度。
func WithEfConstruction(ef int) GraphOption {
	return func(g *Graph) {
		if ef > 0 {
			g.efConstruction = ef
		}
	}
}

// NewGraph 创建维度为 dimension 的近邻图索引。
func NewGraph(dimension int, opts ...GraphOption) *Graph {
	g := &Graph{
		layers:         []map[string][]string{make(map[string][]string)},
		vectors:        make(map[string][]float64),
		dimension:      dimension,
		maxConnections: defaultMaxConnections,
		efConstruction: defaultEfConstruction,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return g
}

func (g *Graph) Dimension() int { return g.dimension }

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vectors)
}

// randomLevel 以连续抛硬币抽取插入层级。调用方持有写锁。
func (g *Graph) randomLevel() int {
	level := 0
	for g.rng.Float64() < 0.5 && level < maxLayer {
		level++
	}
	return level
}

// Add 插入向量并在每个注册层建立邻接。重复 ID 覆盖向量，保留既有邻接。
func (g *Graph) Add(id string, vector []float64) error {
	if len(vector) != g.dimension {
		return core.NewDomainError(core.ModuleIndex, core.ErrorCodeInvalidInput,
			fmt.Sprintf("vector dimension mismatch: expected %d, got %d", g.dimension, len(vector)))
	}
	cp := make([]float64, len(vector))
	copy(cp, vector)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.vectors[id]; exists {
		g.vectors[id] = cp
		return nil
	}

	level := g.randomLevel()
	for len(g.layers) <= level {
		g.layers = append(g.layers, make(map[string][]string))
	}
	g.vectors[id] = cp

	// 第一个节点：各层注册空邻接即可
	if len(g.vectors) == 1 {
		for l := 0; l <= level; l++ {
			g.layers[l][id] = nil
		}
		return nil
	}

	// 从最高非空层贪心下行到 level+1，得到建图入口
	entry := g.entryPointLocked()
	top := g.topLayerLocked()
	eps := []string{entry}
	for l := top; l > level; l-- {
		if closest := g.searchLayerLocked(cp, eps, 1, l); len(closest) > 0 {
			eps = []string{closest[0].id}
		}
	}

	// level..0 逐层选 M 个最近邻建立双向邻接
	for l := min(level, top); l >= 0; l-- {
		candidates := g.searchLayerLocked(cp, eps, g.efConstruction, l)
		m := g.maxConnections
		if len(candidates) < m {
			m = len(candidates)
		}
		neighbors := make([]string, 0, m)
		for _, c := range candidates[:m] {
			neighbors = append(neighbors, c.id)
		}
		g.layers[l][id] = neighbors
		for _, n := range neighbors {
			g.layers[l][n] = append(g.layers[l][n], id)
			g.trimNeighborsLocked(l, n)
		}

		eps = eps[:0]
		for _, c := range candidates {
			eps = append(eps, c.id)
		}
		if len(eps) == 0 {
			eps = []string{entry}
		}
	}

	// 新的更高层（既有节点都不在）只注册成员
	for l := top + 1; l <= level; l++ {
		g.layers[l][id] = nil
	}
	return nil
}

// Update 语义与 Add 相同：已有节点只覆盖向量。
func (g *Graph) Update(id string, vector []float64) error {
	return g.Add(id, vector)
}

// Remove 删除节点：各层成员与其他节点邻接表中的引用一并清除。幂等。
func (g *Graph) Remove(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.vectors, id)
	for _, layer := range g.layers {
		delete(layer, id)
		for node, neighbors := range layer {
			kept := neighbors[:0]
			for _, n := range neighbors {
				if n != id {
					kept = append(kept, n)
				}
			}
			layer[node] = kept
		}
	}
	return nil
}

// SearchSimilar 返回与 query 最邻近的 k 个结果，由近及远排列。
// Score 为平方欧氏距离换算的相似度 1/(1+d)，精确命中为 1。
// 近似检索：不保证精确 top-k。
func (g *Graph) SearchSimilar(query []float64, k int) ([]core.ScoredVector, error) {
	if len(query) != g.dimension {
		return nil, core.NewDomainError(core.ModuleIndex, core.ErrorCodeInvalidInput,
			fmt.Sprintf("query dimension mismatch: expected %d, got %d", g.dimension, len(query)))
	}
	if k <= 0 {
		k = 10
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.vectors) == 0 {
		return []core.ScoredVector{}, nil
	}

	eps := []string{g.entryPointLocked()}
	for l := g.topLayerLocked(); l >= 1; l-- {
		if closest := g.searchLayerLocked(query, eps, 1, l); len(closest) > 0 {
			eps = []string{closest[0].id}
		}
	}

	found := g.searchLayerLocked(query, eps, k, 0)
	if len(found) > k {
		found = found[:k]
	}
	out := make([]core.ScoredVector, len(found))
	for i, n := range found {
		out[i] = core.ScoredVector{ID: n.id, Score: 1.0 / (1.0 + n.dist)}
	}
	return out, nil
}

// topLayerLocked 返回最高非空层的下标。
func (g *Graph) topLayerLocked() int {
	for l := len(g.layers) - 1; l >= 0; l-- {
		if len(g.layers[l]) > 0 {
			return l
		}
	}
	return 0
}

// entryPointLocked 取最高非空层遇到的第一个节点作为入口。
func (g *Graph) entryPointLocked() string {
	for l := len(g.layers) - 1; l >= 0; l-- {
		for id := range g.layers[l] {
			return id
		}
	}
	return ""
}

type searchNode struct {
	id   string
	dist float64
}

// searchLayerLocked 在单层上做 best-first 束搜索，返回不超过 ef 个
// 最近节点，按距离升序。调用方持有锁。
func (g *Graph) searchLayerLocked(query []float64, entryPoints []string, ef, layer int) []searchNode {
	if layer >= len(g.layers) {
		return nil
	}
	visited := make(map[string]struct{})
	frontier := &minDistHeap{} // 待扩展候选，最近优先
	results := &maxDistHeap{}  // 已接受结果，最远在堆顶，有界 ef

	for _, ep := range entryPoints {
		vec, ok := g.vectors[ep]
		if !ok {
			continue
		}
		if _, seen := visited[ep]; seen {
			continue
		}
		visited[ep] = struct{}{}
		n := searchNode{id: ep, dist: vecmath.SquaredEuclidean(query, vec)}
		heap.Push(frontier, n)
		heap.Push(results, n)
	}

	for frontier.Len() > 0 {
		current := heap.Pop(frontier).(searchNode)
		// 前沿最近候选比最差已接受结果还远时停止扩展
		if results.Len() >= ef && current.dist > (*results)[0].dist {
			break
		}
		for _, neighbor := range g.layers[layer][current.id] {
			if _, seen := visited[neighbor]; seen {
				continue
			}
			visited[neighbor] = struct{}{}
			vec, ok := g.vectors[neighbor]
			if !ok {
				continue
			}
			n := searchNode{id: neighbor, dist: vecmath.SquaredEuclidean(query, vec)}
			if results.Len() < ef {
				heap.Push(frontier, n)
				heap.Push(results, n)
			} else if n.dist < (*results)[0].dist {
				heap.Push(frontier, n)
				heap.Pop(results)
				heap.Push(results, n)
			}
		}
	}

	out := make([]searchNode, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(searchNode)
	}
	return out
}

// trimNeighborsLocked 把节点的邻接表裁剪为离它最近的 M 个。
func (g *Graph) trimNeighborsLocked(layer int, id string) {
	neighbors := g.layers[layer][id]
	if len(neighbors) <= g.maxConnections {
		return
	}
	base := g.vectors[id]
	sort.Slice(neighbors, func(i, j int) bool {
		return vecmath.SquaredEuclidean(base, g.vectors[neighbors[i]]) <
			vecmath.SquaredEuclidean(base, g.vectors[neighbors[j]])
	})
	g.layers[layer][id] = neighbors[:g.maxConnections]
}

type minDistHeap []searchNode

func (h minDistHeap) Len() int            { return len(h) }
func (h minDistHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x interface{}) { *h = append(*h, x.(searchNode)) }
func (h *minDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type maxDistHeap []searchNode

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x interface{}) { *h = append(*h, x.(searchNode)) }
func (h *maxDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// 确保实现了接口
var _ core.VectorIndex = (*Graph)(nil)
