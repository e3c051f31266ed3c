package optimizer

import "math"

// AdaGrad 按参数累积历史梯度平方，对高频维度自动衰减学习率。
type AdaGrad struct {
	LearningRate float64
	Epsilon      float64

	sumSquared map[string][]float64
}

// NewAdaGrad 创建 AdaGrad 更新器。
func NewAdaGrad(learningRate, epsilon float64) *AdaGrad {
	return &AdaGrad{
		LearningRate: learningRate,
		Epsilon:      epsilon,
		sumSquared:   make(map[string][]float64),
	}
}

// NewDefaultAdaGrad 使用常用默认值（lr=0.01, ε=1e-8）。
func NewDefaultAdaGrad() *AdaGrad {
	return NewAdaGrad(0.01, 1e-8)
}

func (a *AdaGrad) Name() string { return "adagrad" }

func (a *AdaGrad) Apply(params, grads []float64) {
	a.ApplyWithKey("default", params, grads)
}

func (a *AdaGrad) ApplyWithKey(key string, params, grads []float64) {
	assertSameLen(params, grads)

	acc, ok := a.sumSquared[key]
	if !ok {
		acc = make([]float64, len(params))
		a.sumSquared[key] = acc
	}

	for i := range params {
		g := grads[i]
		acc[i] += g * g
		params[i] -= g * a.LearningRate / math.Sqrt(acc[i]+a.Epsilon)
	}
}

// Reset 清空所有参数组的平方梯度累积。
func (a *AdaGrad) Reset() {
	a.sumSquared = make(map[string][]float64)
}
