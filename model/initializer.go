package model

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// InitMethod 是嵌入初始化方法。
type InitMethod string

const (
	XavierUniform InitMethod = "xavier_uniform"
	XavierNormal  InitMethod = "xavier_normal"
	HeUniform     InitMethod = "he_uniform"
	HeNormal      InitMethod = "he_normal"
	LecunUniform  InitMethod = "lecun_uniform"
	LecunNormal   InitMethod = "lecun_normal"
	Uniform       InitMethod = "uniform"
	Normal        InitMethod = "normal"
	Constant      InitMethod = "constant"
	Zeros         InitMethod = "zeros"
	Ones          InitMethod = "ones"
)

// Initializer 按指定方法生成嵌入向量。
//
// InitEmbedding 的随机源由标识符的 FNV-1a 64 位散列确定性播种：
// 同一标识符在训练发生前始终得到同一初始向量——重启连续性与
// 测试确定性都依赖这一点。
type Initializer struct {
	Method    InitMethod
	Dimension int

	// Uniform / Normal / Constant 三种参数化方法的参数，其余方法忽略。
	Low, High float64
	Mean, Std float64
	Value     float64
}

// NewInitializer 创建初始化器，method 为空时使用 XavierUniform。
func NewInitializer(method InitMethod, dimension int) *Initializer {
	if method == "" {
		method = XavierUniform
	}
	return &Initializer{Method: method, Dimension: dimension}
}

// InitEmbedding 为标识符生成确定性初始嵌入。
func (in *Initializer) InitEmbedding(id string) []float64 {
	rng := rand.New(rand.NewSource(int64(seedFromID(id))))
	return in.generate(rng)
}

// RandomEmbedding 用外部随机源生成一个嵌入（负采样的新物品特征用）。
func (in *Initializer) RandomEmbedding(rng *rand.Rand) []float64 {
	return in.generate(rng)
}

func (in *Initializer) generate(rng *rand.Rand) []float64 {
	d := in.Dimension
	out := make([]float64, d)
	switch in.Method {
	case XavierNormal:
		std := math.Sqrt(2.0 / float64(d))
		fillNormal(rng, out, 0, std)
	case HeUniform:
		fillUniform(rng, out, math.Sqrt(6.0/float64(d)))
	case HeNormal:
		std := math.Sqrt(2.0 / float64(d))
		fillNormal(rng, out, 0, std)
	case LecunUniform:
		fillUniform(rng, out, math.Sqrt(3.0/float64(d)))
	case LecunNormal:
		std := math.Sqrt(1.0 / float64(d))
		fillNormal(rng, out, 0, std)
	case Uniform:
		for i := range out {
			out[i] = in.Low + rng.Float64()*(in.High-in.Low)
		}
	case Normal:
		fillNormal(rng, out, in.Mean, in.Std)
	case Constant:
		for i := range out {
			out[i] = in.Value
		}
	case Zeros:
		// 已是零值
	case Ones:
		for i := range out {
			out[i] = 1.0
		}
	case XavierUniform:
		fallthrough
	default:
		fillUniform(rng, out, math.Sqrt(6.0/float64(d)))
	}
	return out
}

func fillUniform(rng *rand.Rand, out []float64, limit float64) {
	for i := range out {
		out[i] = (rng.Float64()*2.0 - 1.0) * limit
	}
}

func fillNormal(rng *rand.Rand, out []float64, mean, std float64) {
	for i := range out {
		out[i] = rng.NormFloat64()*std + mean
	}
}

// seedFromID 用 FNV-1a 把标识符的比特模式折叠为 64 位种子。
func seedFromID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
