// Package feature 负责训练样本的特征补全。
//
// 在线训练流里，上游事件常常只带实体 ID 而缺少特征向量。
// Enricher 在样本进入训练编排器之前，从 Feast Feature Server
// 拉取在线特征，把缺失的 UserFeatures / ItemFeatures 补齐。
package feature

import (
	"context"
	"fmt"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"
	"go.uber.org/zap"

	"github.com/rushteam/veckit/core"
)

// onlineFeatureClient 抽象官方 SDK 的在线特征调用，便于测试替换。
type onlineFeatureClient interface {
	GetOnlineFeatures(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error)
}

// FeastEnricher 基于官方 Feast Go SDK 的特征补全器。
//
// 设计原则：
//   - 补全是尽力而为：Feast 不可用或特征缺失时保留原样本，
//     由下游校验决定取舍，不在这里阻断训练流
//   - 只补缺失字段：样本自带的特征永远优先于特征仓库
//
// 使用场景：
//   - Kafka 事件只带 user_id/item_id，特征由离线管道物化到 Feast
//   - 冷启动留空，交给模型初始化器按 ID 生成
type FeastEnricher struct {
	client  onlineFeatureClient
	project string
	logger  *zap.Logger

	// UserFeatureRefs / ItemFeatureRefs 是特征引用名列表，
	// 顺序即补全后向量的分量顺序。
	UserFeatureRefs []string
	ItemFeatureRefs []string

	// UserEntityKey / ItemEntityKey 是 Feast 实体键名。
	UserEntityKey string
	ItemEntityKey string
}

// EnricherOption 配置 FeastEnricher。
type EnricherOption func(*FeastEnricher)

// WithEnricherLogger 设置日志器。
func WithEnricherLogger(logger *zap.Logger) EnricherOption {
	return func(e *FeastEnricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithUserFeatures 设置用户侧特征引用与实体键。
func WithUserFeatures(entityKey string, refs ...string) EnricherOption {
	return func(e *FeastEnricher) {
		e.UserEntityKey = entityKey
		e.UserFeatureRefs = refs
	}
}

// WithItemFeatures 设置物品侧特征引用与实体键。
func WithItemFeatures(entityKey string, refs ...string) EnricherOption {
	return func(e *FeastEnricher) {
		e.ItemEntityKey = entityKey
		e.ItemFeatureRefs = refs
	}
}

// NewFeastEnricher 连接 Feast Feature Server 并创建补全器。
//
// 参数：
//   - host: Feature Server 主机地址
//   - port: gRPC 端口，0 时使用默认 6565
//   - project: Feast 项目名
func NewFeastEnricher(host string, port int, project string, opts ...EnricherOption) (*FeastEnricher, error) {
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("connect feast %s:%d: %v", host, port, err))
	}
	e := &FeastEnricher{
		client:        client,
		project:       project,
		logger:        zap.NewNop(),
		UserEntityKey: "user_id",
		ItemEntityKey: "item_id",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich 补全单条样本的缺失特征，原样本不被修改。
//
// 仅在对应特征引用列表非空且样本该侧特征为空时发起拉取；
// 拉取失败记录日志并返回原样本。
func (e *FeastEnricher) Enrich(ctx context.Context, example core.TrainingExample) core.TrainingExample {
	if len(example.UserFeatures) == 0 && len(e.UserFeatureRefs) > 0 {
		vec, err := e.fetch(ctx, e.UserEntityKey, example.UserID, e.UserFeatureRefs)
		if err != nil {
			e.logger.Warn("feast user feature lookup failed",
				zap.String("user_id", example.UserID), zap.Error(err))
		} else {
			example.UserFeatures = vec
		}
	}
	if len(example.ItemFeatures) == 0 && len(e.ItemFeatureRefs) > 0 {
		vec, err := e.fetch(ctx, e.ItemEntityKey, example.ItemID, e.ItemFeatureRefs)
		if err != nil {
			e.logger.Warn("feast item feature lookup failed",
				zap.String("item_id", example.ItemID), zap.Error(err))
		} else {
			example.ItemFeatures = vec
		}
	}
	return example
}

// EnrichBatch 逐条补全一批样本。
func (e *FeastEnricher) EnrichBatch(ctx context.Context, examples []core.TrainingExample) []core.TrainingExample {
	out := make([]core.TrainingExample, len(examples))
	for i, ex := range examples {
		out[i] = e.Enrich(ctx, ex)
	}
	return out
}

// fetch 拉取单个实体的一组标量特征，按 refs 顺序组装为向量。
func (e *FeastEnricher) fetch(ctx context.Context, entityKey, entityID string, refs []string) ([]float64, error) {
	req := &feastsdk.OnlineFeaturesRequest{
		Features: refs,
		Entities: []feastsdk.Row{
			{entityKey: feastsdk.StrVal(entityID)},
		},
		Project: e.project,
	}
	resp, err := e.client.GetOnlineFeatures(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("feast get online features: %w", err)
	}

	rows := resp.Rows()
	if len(rows) != 1 {
		return nil, fmt.Errorf("unexpected response row count: %d", len(rows))
	}
	row := rows[0]

	vec := make([]float64, 0, len(refs))
	for _, ref := range refs {
		val, ok := row[ref]
		if !ok || val == nil {
			return nil, fmt.Errorf("feature %q missing in response", ref)
		}
		f, ok := scalarValue(val)
		if !ok {
			return nil, fmt.Errorf("feature %q is not a numeric scalar", ref)
		}
		vec = append(vec, f)
	}
	return vec, nil
}

// scalarValue 抽取 SDK 值中的数值标量。
// SDK 的 Row 值是 protobuf *types.Value，按常见数值类型展开。
func scalarValue(val *feasttypes.Value) (float64, bool) {
	switch v := val.GetVal().(type) {
	case *feasttypes.Value_DoubleVal:
		return v.DoubleVal, true
	case *feasttypes.Value_FloatVal:
		return float64(v.FloatVal), true
	case *feasttypes.Value_Int64Val:
		return float64(v.Int64Val), true
	case *feasttypes.Value_Int32Val:
		return float64(v.Int32Val), true
	default:
		return 0, false
	}
}
