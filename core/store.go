package core

import "context"

// EmbeddingStore 是外部嵌入持久化存储的协作方接口。
//
// 索引本身不做持久化（进程内重建），训练产出的嵌入通过此接口
// 推送到慢速持久层；重启后由持久层回灌。
//
// 实现：
//   - store.Memory 实现此接口（测试/原型）
//   - store.Redis 实现此接口（生产常用）
type EmbeddingStore interface {
	// GetEmbedding 读取嵌入；不存在返回 NOT_FOUND
	GetEmbedding(ctx context.Context, id string) ([]float64, error)

	// PutEmbedding 写入/覆盖嵌入
	PutEmbedding(ctx context.Context, id string, embedding []float64) error

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: embedding not found")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	if err == nil {
		return false
	}
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
