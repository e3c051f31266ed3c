// Package store 提供 core.EmbeddingStore 的实现。
package store

import (
	"context"
	"sync"

	"github.com/rushteam/veckit/core"
)

// Memory 是内存实现的嵌入存储，用于测试/开发/原型。
// 纯内存实现，进程重启后数据丢失；线程安全。
type Memory struct {
	mu         sync.RWMutex
	embeddings map[string][]float64
}

// NewMemory 创建内存嵌入存储。
func NewMemory() *Memory {
	return &Memory{
		embeddings: make(map[string][]float64),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) GetEmbedding(_ context.Context, id string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emb, ok := m.embeddings[id]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	cp := make([]float64, len(emb))
	copy(cp, emb)
	return cp, nil
}

func (m *Memory) PutEmbedding(_ context.Context, id string, embedding []float64) error {
	cp := make([]float64, len(embedding))
	copy(cp, embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[id] = cp
	return nil
}

// Len 返回存储的嵌入数量。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = make(map[string][]float64)
	return nil
}

// 确保实现了接口
var _ core.EmbeddingStore = (*Memory)(nil)
