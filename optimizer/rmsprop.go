package optimizer

import "math"

// RMSProp 维护梯度平方的指数滑动平均，缓解 AdaGrad 学习率单调衰减。
type RMSProp struct {
	LearningRate float64
	DecayRate    float64
	Epsilon      float64

	cache map[string][]float64
}

// NewRMSProp 创建 RMSProp 更新器。
func NewRMSProp(learningRate, decayRate, epsilon float64) *RMSProp {
	return &RMSProp{
		LearningRate: learningRate,
		DecayRate:    decayRate,
		Epsilon:      epsilon,
		cache:        make(map[string][]float64),
	}
}

// NewDefaultRMSProp 使用常用默认值（lr=0.001, decay=0.9, ε=1e-8）。
func NewDefaultRMSProp() *RMSProp {
	return NewRMSProp(0.001, 0.9, 1e-8)
}

func (r *RMSProp) Name() string { return "rmsprop" }

func (r *RMSProp) Apply(params, grads []float64) {
	r.ApplyWithKey("default", params, grads)
}

func (r *RMSProp) ApplyWithKey(key string, params, grads []float64) {
	assertSameLen(params, grads)

	cache, ok := r.cache[key]
	if !ok {
		cache = make([]float64, len(params))
		r.cache[key] = cache
	}

	for i := range params {
		g := grads[i]
		cache[i] = r.DecayRate*cache[i] + (1.0-r.DecayRate)*g*g
		params[i] -= r.LearningRate * g / math.Sqrt(cache[i]+r.Epsilon)
	}
}

// Reset 清空所有参数组的缓存。
func (r *RMSProp) Reset() {
	r.cache = make(map[string][]float64)
}
