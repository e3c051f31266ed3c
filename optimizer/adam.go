package optimizer

import "math"

// adamMoments 是单个参数组的一阶/二阶矩累积。
type adamMoments struct {
	m []float64
	v []float64
}

// Adam 是带偏差修正的自适应矩估计更新器。
//
// 每次 Apply 递增全局步数 t（所有参数组共享）；
// 偏差修正项为 1 - β^t。
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t       int
	moments map[string]*adamMoments
}

// NewAdam 创建 Adam 更新器。
func NewAdam(learningRate, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      epsilon,
		moments:      make(map[string]*adamMoments),
	}
}

// NewDefaultAdam 使用常用默认值（lr=0.001, β1=0.9, β2=0.999, ε=1e-8）。
func NewDefaultAdam() *Adam {
	return NewAdam(0.001, 0.9, 0.999, 1e-8)
}

func (a *Adam) Name() string { return "adam" }

func (a *Adam) Apply(params, grads []float64) {
	a.ApplyWithKey("default", params, grads)
}

func (a *Adam) ApplyWithKey(key string, params, grads []float64) {
	assertSameLen(params, grads)
	a.t++

	mom, ok := a.moments[key]
	if !ok {
		mom = &adamMoments{
			m: make([]float64, len(params)),
			v: make([]float64, len(params)),
		}
		a.moments[key] = mom
	}

	corr1 := 1.0 - math.Pow(a.Beta1, float64(a.t))
	corr2 := 1.0 - math.Pow(a.Beta2, float64(a.t))

	for i := range params {
		g := grads[i]
		mom.m[i] = a.Beta1*mom.m[i] + (1.0-a.Beta1)*g
		mom.v[i] = a.Beta2*mom.v[i] + (1.0-a.Beta2)*g*g

		mHat := mom.m[i] / corr1
		vHat := mom.v[i] / corr2

		params[i] -= a.LearningRate * mHat / math.Sqrt(vHat+a.Epsilon)
	}
}

// Reset 清空步数与所有参数组的矩累积。
func (a *Adam) Reset() {
	a.t = 0
	a.moments = make(map[string]*adamMoments)
}
