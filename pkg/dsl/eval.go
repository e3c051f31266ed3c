package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("candidate", cel.DynType),
		cel.Variable("user", cel.DynType),
		cel.Variable("params", cel.DynType),
	)
	return env, err
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Candidate 是过滤表达式可见的候选视图。
type Candidate struct {
	ID         string
	Similarity float64
	Prediction float64
	Score      float64
}

// Filter 是候选过滤 DSL 解释器，使用 CEL (Common Expression Language) 实现。
// 表达式编译一次后缓存，同一个 Filter 可并发用于整批候选。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：candidate.score > 0.7 / candidate.similarity >= 0.5
//   - 逻辑：candidate.prediction > 0.6 && candidate.score > 0.8
//   - 身份：candidate.id != user.id
//   - 参数：candidate.score > params.min_score
//
// 示例：
//   - `candidate.similarity > 0.9` → 只保留高相似候选
//   - `candidate.id.startsWith("promo_") == false` → 排除运营位物品
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter 编译过滤表达式。空表达式创建放行一切的过滤器。
func NewFilter(expr string) (*Filter, error) {
	f := &Filter{expr: expr}
	if expr == "" {
		return f, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env error: %v", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}
	f.prg = prg
	return f, nil
}

// Expr 返回编译时的原始表达式。
func (f *Filter) Expr() string { return f.expr }

// Keep 执行表达式并返回候选是否保留。
//
// 注意：CEL 访问不存在的 key 会报错，
// 用户应使用 params.key != null 检查存在性
func (f *Filter) Keep(c Candidate, userID string, params map[string]interface{}) (bool, error) {
	if f.prg == nil {
		return true, nil
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	input := map[string]interface{}{
		"candidate": map[string]interface{}{
			"id":         c.ID,
			"similarity": c.Similarity,
			"prediction": c.Prediction,
			"score":      c.Score,
		},
		"user": map[string]interface{}{
			"id": userID,
		},
		"params": params,
	}

	out, _, err := f.prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}
