package core

import (
	"math"
	"testing"
	"time"
)

func validExample() TrainingExample {
	return TrainingExample{
		UserID:       "user_1",
		ItemID:       "item_1",
		Label:        1.0,
		UserFeatures: []float64{0.1, 0.2},
		ItemFeatures: []float64{0.3, 0.4},
		Timestamp:    time.Now(),
	}
}

func TestValidateExample(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TrainingExample)
		wantErr bool
	}{
		{"valid", func(e *TrainingExample) {}, false},
		{"label zero", func(e *TrainingExample) { e.Label = 0 }, false},
		{"empty user id", func(e *TrainingExample) { e.UserID = "" }, true},
		{"empty item id", func(e *TrainingExample) { e.ItemID = "" }, true},
		{"label NaN", func(e *TrainingExample) { e.Label = math.NaN() }, true},
		{"label Inf", func(e *TrainingExample) { e.Label = math.Inf(1) }, true},
		{"label negative", func(e *TrainingExample) { e.Label = -0.1 }, true},
		{"label above one", func(e *TrainingExample) { e.Label = 1.1 }, true},
		{"empty user features", func(e *TrainingExample) { e.UserFeatures = nil }, true},
		{"empty item features", func(e *TrainingExample) { e.ItemFeatures = nil }, true},
		{"user features too large", func(e *TrainingExample) {
			e.UserFeatures = make([]float64, MaxEmbeddingDim+1)
		}, true},
		{"context features too large", func(e *TrainingExample) {
			e.ContextFeatures = make([]float64, MaxContextDim+1)
		}, true},
		{"context features at limit", func(e *TrainingExample) {
			e.ContextFeatures = make([]float64, MaxContextDim)
		}, false},
		{"NaN in user features", func(e *TrainingExample) {
			e.UserFeatures = []float64{0.1, math.NaN()}
		}, true},
		{"Inf in item features", func(e *TrainingExample) {
			e.ItemFeatures = []float64{math.Inf(-1), 0.3}
		}, true},
		{"timestamp too far future", func(e *TrainingExample) {
			e.Timestamp = time.Now().Add(2 * time.Hour)
		}, true},
		{"stale timestamp", func(e *TrainingExample) {
			e.Timestamp = time.Now().AddDate(-2, 0, 0)
		}, true},
		{"zero timestamp", func(e *TrainingExample) {
			e.Timestamp = time.Time{}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			example := validExample()
			tt.mutate(&example)
			err := ValidateExample(&example)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExample() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsInvalidInput(err) {
				t.Errorf("ValidateExample() error is not INVALID_INPUT: %v", err)
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	if err := ValidateVector(ModuleIndex, []float64{1, 2, 3}, 3); err != nil {
		t.Errorf("ValidateVector() valid vector error = %v", err)
	}
	if err := ValidateVector(ModuleIndex, []float64{1, 2}, 3); err == nil {
		t.Error("ValidateVector() dimension mismatch accepted")
	}
	if err := ValidateVector(ModuleIndex, []float64{1, math.NaN(), 3}, 3); err == nil {
		t.Error("ValidateVector() NaN accepted")
	}
}

func TestValidateTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		ts      time.Time
		wantErr bool
	}{
		{"now", time.Now(), false},
		{"slightly future", time.Now().Add(30 * time.Minute), false},
		{"too far future", time.Now().Add(2 * time.Hour), true},
		{"recent past", time.Now().AddDate(0, -6, 0), false},
		{"too far past", time.Now().AddDate(-2, 0, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimestamp(tt.ts)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimestamp() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
