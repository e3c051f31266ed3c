// Package veckit 是一个在线学习与向量检索工具包（Vector Kit）。
//
// 设计要点：
// - Learning-first: 训练事件流式进入（Transport → Orchestrator → Algorithm），
//   嵌入表在线更新，无离线重训依赖
// - 双索引: 精确线性扫描与多层近邻图两种 VectorIndex 实现，同一接口可替换
// - 可插拔: 优化器、嵌入存储、传输层均为接口，本地或外部实现均可接入
package veckit

import "github.com/rushteam/veckit/core"

// 轻量 facade：便于用户直接 import "veckit" 使用核心抽象。
type Algorithm = core.Algorithm
type VectorIndex = core.VectorIndex
type EmbeddingStore = core.EmbeddingStore
type Transport = core.Transport
type TrainingExample = core.TrainingExample
type ModelSnapshot = core.ModelSnapshot
type ScoredVector = core.ScoredVector
