package core

import (
	"fmt"
	"math"
	"time"

	"github.com/rushteam/veckit/pkg/vecmath"
)

// 特征维度的硬上限，超出视为非法输入。
const (
	MaxEmbeddingDim = 2048
	MaxContextDim   = 512
)

// ValidateVector 校验向量的有限性与维度。
// NaN/Inf 只在摄入边界拒绝，热路径算术内部不再检查。
func ValidateVector(module string, vector []float64, expectedDim int) error {
	if len(vector) != expectedDim {
		return NewDomainError(module, ErrorCodeInvalidInput,
			fmt.Sprintf("vector dimension mismatch: expected %d, got %d", expectedDim, len(vector)))
	}
	if !vecmath.IsFinite(vector) {
		return NewDomainError(module, ErrorCodeInvalidInput,
			"vector contains invalid values (NaN or Infinity)")
	}
	return nil
}

// ValidateExample 校验一条训练样本，含事件时间窗口（见 ValidateTimestamp）。
// 单条样本非法不应中断整个批次，由调用方决定跳过策略。
func ValidateExample(example *TrainingExample) error {
	if example.UserID == "" {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "user id cannot be empty")
	}
	if example.ItemID == "" {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "item id cannot be empty")
	}
	if math.IsNaN(example.Label) || math.IsInf(example.Label, 0) {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "label contains invalid values (NaN or Infinity)")
	}
	if example.Label < 0.0 || example.Label > 1.0 {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "label must be between 0.0 and 1.0")
	}
	if len(example.UserFeatures) == 0 {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "user features cannot be empty")
	}
	if len(example.UserFeatures) > MaxEmbeddingDim {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput,
			fmt.Sprintf("user features dimension too large (max %d)", MaxEmbeddingDim))
	}
	if len(example.ItemFeatures) == 0 {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput, "item features cannot be empty")
	}
	if len(example.ItemFeatures) > MaxEmbeddingDim {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput,
			fmt.Sprintf("item features dimension too large (max %d)", MaxEmbeddingDim))
	}
	if len(example.ContextFeatures) > MaxContextDim {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput,
			fmt.Sprintf("context features dimension too large (max %d)", MaxContextDim))
	}
	for _, vs := range [][]float64{example.UserFeatures, example.ItemFeatures, example.ContextFeatures} {
		if !vecmath.IsFinite(vs) {
			return NewDomainError(ModuleModel, ErrorCodeInvalidInput,
				"features contain invalid values (NaN or Infinity)")
		}
	}
	return ValidateTimestamp(example.Timestamp)
}

// ValidateTimestamp 校验事件时间：不允许超前 1 小时，不允许落后 1 年。
func ValidateTimestamp(ts time.Time) error {
	now := time.Now()
	if ts.After(now.Add(time.Hour)) {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput,
			"timestamp cannot be more than 1 hour in the future")
	}
	if ts.Before(now.AddDate(-1, 0, 0)) {
		return NewDomainError(ModuleModel, ErrorCodeInvalidInput,
			"timestamp cannot be more than 1 year in the past")
	}
	return nil
}
