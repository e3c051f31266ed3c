package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/veckit/core"
)

const embeddingKeyPrefix = "emb:"

// Redis 是 Redis 实现的嵌入存储。
// 生产环境常用，支持持久化、集群、哨兵等；向量以 JSON 编码存放。
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis 创建 Redis 嵌入存储。ttlSeconds <= 0 表示不过期。
func NewRedis(addr string, db int, ttlSeconds int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) GetEmbedding(ctx context.Context, id string) ([]float64, error) {
	val, err := r.client.Get(ctx, embeddingKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	var emb []float64
	if err := json.Unmarshal(val, &emb); err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError,
			"store: corrupt embedding payload: "+err.Error())
	}
	return emb, nil
}

func (r *Redis) PutEmbedding(ctx context.Context, id string, embedding []float64) error {
	payload, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, embeddingKeyPrefix+id, payload, r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// 确保实现了接口
var _ core.EmbeddingStore = (*Redis)(nil)
