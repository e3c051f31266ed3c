// Package optimizer 提供可插拔的数值参数更新器。
//
// 所有实现对任意数值向量生效，不感知其语义角色；
// 与 model 包里固定的嵌入更新规则相互独立。
package optimizer

// Optimizer 是参数更新器接口。
//
// 约定：
//   - Apply 原地修改 params，假定 params 与 grads 等长；
//     长度不一致是编程契约违例（panic），不是可恢复错误
//   - 带状态的实现按参数组 key 维护累积量；Apply 等价于
//     ApplyWithKey("default", ...)
//   - Reset 清空全部累积状态（含全局步数计数）
type Optimizer interface {
	Name() string
	Apply(params, grads []float64)
	ApplyWithKey(key string, params, grads []float64)
	Reset()
}

func assertSameLen(params, grads []float64) {
	if len(params) != len(grads) {
		panic("optimizer: params and grads length mismatch")
	}
}

// SGD 是朴素随机梯度下降：params -= lr * grads。无内部状态。
type SGD struct {
	LearningRate float64
}

// NewSGD 创建 SGD 更新器。
func NewSGD(learningRate float64) *SGD {
	return &SGD{LearningRate: learningRate}
}

func (s *SGD) Name() string { return "sgd" }

func (s *SGD) Apply(params, grads []float64) {
	assertSameLen(params, grads)
	for i := range params {
		params[i] -= s.LearningRate * grads[i]
	}
}

func (s *SGD) ApplyWithKey(_ string, params, grads []float64) {
	s.Apply(params, grads)
}

// Reset 无状态可清。
func (s *SGD) Reset() {}

var (
	_ Optimizer = (*SGD)(nil)
	_ Optimizer = (*Adam)(nil)
	_ Optimizer = (*AdaGrad)(nil)
	_ Optimizer = (*RMSProp)(nil)
)
