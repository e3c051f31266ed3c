// Package transport 提供 core.Transport 的实现：
//   - Kafka：franz-go 客户端（生产环境）
//   - Memory：进程内有界通道（测试/原型）
package transport

import (
	"context"
	"sync"

	"github.com/rushteam/veckit/core"
)

// Memory 是进程内通道实现的样本传输，用于测试/开发/原型。
// 通道容量有界：消费落后时 Publish 阻塞（背压），不丢事件。
//
// 关闭协议：Close 先关 done 唤醒阻塞中的发送方，等所有发送方退出
// 读锁后才关数据通道。数据通道只在没有任何发送方在途时关闭，
// 已缓冲的样本仍可被消费方排空。
type Memory struct {
	ch   chan core.TrainingExample
	done chan struct{}

	mu     sync.RWMutex
	once   sync.Once
	closed bool
}

// NewMemory 创建容量为 buffer 的内存传输（buffer <= 0 时取 1000）。
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 1000
	}
	return &Memory{
		ch:   make(chan core.TrainingExample, buffer),
		done: make(chan struct{}),
	}
}

func (m *Memory) Consume(_ context.Context) (<-chan core.TrainingExample, error) {
	return m.ch, nil
}

// Publish 把样本送入通道；通道满时阻塞直到消费方跟上、ctx 取消
// 或传输被关闭。读锁跨越整个 send：持有读锁期间数据通道不会被关闭。
func (m *Memory) Publish(ctx context.Context, example core.TrainingExample) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return core.NewDomainError(core.ModuleTransport, core.ErrorCodeUnavailable, "transport closed")
	}
	select {
	case m.ch <- example:
		return nil
	case <-m.done:
		return core.NewDomainError(core.ModuleTransport, core.ErrorCodeUnavailable, "transport closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.mu.Lock()
		m.closed = true
		close(m.ch)
		m.mu.Unlock()
	})
	return nil
}

// 确保实现了接口
var _ core.Transport = (*Memory)(nil)
