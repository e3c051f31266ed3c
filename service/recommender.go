// Package service 提供面向调用方的推荐门面。
//
// Recommender 把模型（core.Algorithm）、向量索引（core.VectorIndex）
// 与候选过滤 DSL 组合成一次完整的"召回 + 打分 + 过滤"流程，
// 调用方不需要关心各组件的装配细节。
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/veckit/core"
	"github.com/rushteam/veckit/pkg/dsl"
)

// Request 是一次推荐请求。
type Request struct {
	UserID string
	// K 是期望返回的条数，<=0 时使用 Recommender 的默认 TopK。
	K int
	// ExcludeItems 是调用方要求排除的物品（已曝光、已购买等）。
	ExcludeItems []string
	// Params 透传给过滤表达式的自定义参数。
	Params map[string]interface{}
}

// Recommendation 是单条推荐结果。
type Recommendation struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Response 是推荐响应。
type Response struct {
	UserID          string           `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Recommender 是推荐检索门面。
//
// 依赖的索引 Score 必须是越大越近的相似度（index.Linear 与
// index.Graph 均满足），否则混合打分与阈值裁剪语义反转。
//
// 打分：final = (索引相似度 + 模型预测分) / 2；
// 物品在模型里没有嵌入时退化为只用相似度。
// 候选集按默认超采样系数 2 过采样，再经排除表、
// CEL 过滤与阈值裁剪到 K 条。
type Recommender struct {
	algorithm core.Algorithm
	index     core.VectorIndex
	store     core.EmbeddingStore
	filter    *dsl.Filter
	logger    *zap.Logger

	// Threshold 是最终得分下限，低于该值的候选被丢弃。
	Threshold float64

	// topK 是 K<=0 时的默认返回条数。
	topK int
}

// RecommenderOption 配置 Recommender。
type RecommenderOption func(*Recommender)

// WithTopK 设置默认返回条数。
func WithTopK(k int) RecommenderOption {
	return func(r *Recommender) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithThreshold 设置最终得分下限。
func WithThreshold(threshold float64) RecommenderOption {
	return func(r *Recommender) { r.Threshold = threshold }
}

// WithFilterExpr 设置候选过滤的 CEL 表达式。
func WithFilterExpr(expr string) RecommenderOption {
	return func(r *Recommender) {
		f, err := dsl.NewFilter(expr)
		if err != nil {
			r.logger.Warn("invalid filter expression, filtering disabled",
				zap.String("expr", expr), zap.Error(err))
			return
		}
		r.filter = f
	}
}

// WithStore 设置嵌入存储，作为模型内嵌入缺失时的用户向量兜底。
func WithStore(store core.EmbeddingStore) RecommenderOption {
	return func(r *Recommender) { r.store = store }
}

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) RecommenderOption {
	return func(r *Recommender) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecommender 创建推荐门面。
func NewRecommender(algorithm core.Algorithm, index core.VectorIndex, opts ...RecommenderOption) (*Recommender, error) {
	if algorithm == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "algorithm is required")
	}
	if index == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "index is required")
	}
	r := &Recommender{
		algorithm: algorithm,
		index:     index,
		logger:    zap.NewNop(),
		topK:      10,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.filter == nil {
		r.filter, _ = dsl.NewFilter("")
	}
	return r, nil
}

// Recommend 为用户生成推荐。
//
// 流程：取用户嵌入 → 索引过采样召回 → 排除表 → 模型打分混合 →
// CEL 过滤 → 阈值 → 按得分降序截断到 K。
// 用户没有嵌入时返回 NOT_FOUND，冷启动由上层决定兜底策略。
func (r *Recommender) Recommend(ctx context.Context, req Request) (*Response, error) {
	if req.UserID == "" {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "user id is required")
	}
	k := req.K
	if k <= 0 {
		k = r.topK
	}

	userVec, ok := r.algorithm.UserEmbedding(req.UserID)
	if !ok && r.store != nil {
		// 模型热加载前的窗口期里，外部存储可能仍持有旧版嵌入
		if vec, err := r.store.GetEmbedding(ctx, req.UserID); err == nil {
			userVec, ok = vec, true
		} else if !core.IsStoreNotFound(err) {
			r.logger.Warn("store lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
		}
	}
	if !ok {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound,
			fmt.Sprintf("no embedding for user %s", req.UserID))
	}

	// 过采样一倍，给排除与过滤留余量
	candidates, err := r.index.SearchSimilar(userVec, k*2)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(req.ExcludeItems))
	for _, id := range req.ExcludeItems {
		excluded[id] = true
	}

	recs := make([]Recommendation, 0, k)
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if excluded[cand.ID] {
			continue
		}

		final := cand.Score
		prediction := 0.0
		if itemVec, ok := r.algorithm.ItemEmbedding(cand.ID); ok {
			p, err := r.algorithm.Predict(userVec, itemVec)
			if err != nil {
				r.logger.Warn("predict failed, falling back to similarity",
					zap.String("item_id", cand.ID), zap.Error(err))
			} else {
				prediction = p
				final = (cand.Score + prediction) / 2
			}
		}

		keep, err := r.filter.Keep(dsl.Candidate{
			ID:         cand.ID,
			Similarity: cand.Score,
			Prediction: prediction,
			Score:      final,
		}, req.UserID, req.Params)
		if err != nil {
			r.logger.Warn("filter evaluation failed, dropping candidate",
				zap.String("item_id", cand.ID), zap.Error(err))
			continue
		}
		if !keep {
			continue
		}

		if final < r.Threshold {
			continue
		}

		recs = append(recs, Recommendation{
			ItemID: cand.ID,
			Score:  final,
			Reason: fmt.Sprintf("Similar to your preferences (score: %.3f)", final),
		})
		if len(recs) >= k {
			break
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })

	return &Response{
		UserID:          req.UserID,
		Recommendations: recs,
		GeneratedAt:     time.Now(),
	}, nil
}

// SearchSimilar 直接按向量检索索引，透传给 core.VectorIndex。
func (r *Recommender) SearchSimilar(vector []float64, k int) ([]core.ScoredVector, error) {
	return r.index.SearchSimilar(vector, k)
}

// Predict 对外暴露模型的原始打分。
func (r *Recommender) Predict(userVec, itemVec []float64) (float64, error) {
	return r.algorithm.Predict(userVec, itemVec)
}

// AddVector 向索引写入物品向量。
func (r *Recommender) AddVector(id string, vector []float64) error {
	return r.index.Add(id, vector)
}

// UpdateVector 更新索引中的物品向量。
func (r *Recommender) UpdateVector(id string, vector []float64) error {
	return r.index.Update(id, vector)
}

// RemoveVector 从索引删除物品向量。
func (r *Recommender) RemoveVector(id string) error {
	return r.index.Remove(id)
}
