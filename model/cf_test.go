package model

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rushteam/veckit/core"
)

func newExample(userID, itemID string, label float64) core.TrainingExample {
	return core.TrainingExample{
		UserID:       userID,
		ItemID:       itemID,
		Label:        label,
		UserFeatures: []float64{0.1, 0.2},
		ItemFeatures: []float64{0.3, 0.4},
		Timestamp:    time.Now(),
	}
}

func TestPredict(t *testing.T) {
	cf := NewCollaborativeFiltering(2, 0.01, 0.01)

	tests := []struct {
		name    string
		user    []float64
		item    []float64
		want    float64
		wantErr bool
	}{
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0, false},
		{"parallel", []float64{1, 1}, []float64{1, 1}, 2, false},
		{"mixed", []float64{0.5, -0.5}, []float64{2, 2}, 0, false},
		{"length mismatch", []float64{1, 0}, []float64{1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cf.Predict(tt.user, tt.item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Predict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Predict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrainCreatesEmbeddings(t *testing.T) {
	cf := NewCollaborativeFiltering(8, 0.01, 0.01)

	err := cf.Train(context.Background(), []core.TrainingExample{
		newExample("u1", "i1", 1.0),
		newExample("u1", "i2", 0.0),
		newExample("u2", "i1", 1.0),
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	users, items := cf.Stats()
	if users != 2 || items != 2 {
		t.Errorf("Stats() = (%d, %d), want (2, 2)", users, items)
	}

	if _, ok := cf.UserEmbedding("u1"); !ok {
		t.Error("UserEmbedding(u1) missing after training")
	}
	if _, ok := cf.ItemEmbedding("i2"); !ok {
		t.Error("ItemEmbedding(i2) missing after training")
	}
	if _, ok := cf.UserEmbedding("unknown"); ok {
		t.Error("UserEmbedding(unknown) exists without training")
	}
}

func TestTrainDeterministic(t *testing.T) {
	run := func() []float64 {
		cf := NewCollaborativeFiltering(8, 0.01, 0.01)
		examples := []core.TrainingExample{
			newExample("u1", "i1", 1.0),
			newExample("u1", "i2", 0.0),
		}
		if err := cf.Train(context.Background(), examples); err != nil {
			t.Fatal(err)
		}
		emb, _ := cf.UserEmbedding("u1")
		return emb
	}

	a := run()
	b := run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("training not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestTrainSkipsMalformed(t *testing.T) {
	cf := NewCollaborativeFiltering(4, 0.01, 0.01)

	bad := newExample("", "i1", 1.0)
	good := newExample("u1", "i1", 1.0)

	if err := cf.Train(context.Background(), []core.TrainingExample{bad, good}); err != nil {
		t.Fatalf("Train() error = %v, want batch to continue past malformed example", err)
	}

	users, _ := cf.Stats()
	if users != 1 {
		t.Errorf("Stats() users = %d, want 1", users)
	}
}

func TestTrainSkipsStaleTimestamp(t *testing.T) {
	cf := NewCollaborativeFiltering(2, 0.01, 0.01)

	stale := newExample("u_old", "i_old", 1.0)
	stale.Timestamp = time.Now().AddDate(-2, 0, 0)
	fresh := newExample("u1", "i1", 1.0)

	if err := cf.Train(context.Background(), []core.TrainingExample{stale, fresh}); err != nil {
		t.Fatalf("Train() error = %v, want stale example skipped without failing the batch", err)
	}

	if _, ok := cf.UserEmbedding("u_old"); ok {
		t.Error("stale example still created an embedding")
	}
	if _, ok := cf.UserEmbedding("u1"); !ok {
		t.Error("valid example did not create an embedding")
	}
}

func TestTrainReducesLoss(t *testing.T) {
	cf := NewCollaborativeFiltering(8, 0.05, 0.001)
	examples := []core.TrainingExample{
		newExample("u1", "i1", 1.0),
		newExample("u2", "i2", 1.0),
		newExample("u1", "i2", 0.0),
	}

	// seed the embeddings, then measure loss across repeated epochs
	if err := cf.Train(context.Background(), examples); err != nil {
		t.Fatal(err)
	}
	before := cf.ComputeLoss(examples)

	for epoch := 0; epoch < 50; epoch++ {
		if err := cf.Train(context.Background(), examples); err != nil {
			t.Fatal(err)
		}
	}
	after := cf.ComputeLoss(examples)

	if after >= before {
		t.Errorf("loss did not decrease: before %v, after %v", before, after)
	}
}

func TestComputeLossSkipsMissingEndpoints(t *testing.T) {
	cf := NewCollaborativeFiltering(4, 0.01, 0.01)

	// nothing trained yet, every example is skipped
	loss := cf.ComputeLoss([]core.TrainingExample{newExample("u1", "i1", 1.0)})
	if loss != 0 {
		t.Errorf("ComputeLoss() with no embeddings = %v, want 0", loss)
	}

	if err := cf.Train(context.Background(), []core.TrainingExample{newExample("u1", "i1", 1.0)}); err != nil {
		t.Fatal(err)
	}

	// known pair contributes; pair with an unseen item does not
	known := cf.ComputeLoss([]core.TrainingExample{newExample("u1", "i1", 1.0)})
	mixed := cf.ComputeLoss([]core.TrainingExample{
		newExample("u1", "i1", 1.0),
		newExample("u1", "unseen", 0.0),
	})
	if known != mixed {
		t.Errorf("ComputeLoss() counted an example with a missing endpoint: %v vs %v", known, mixed)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	cf := NewCollaborativeFiltering(4, 0.01, 0.01)
	if err := cf.Train(context.Background(), []core.TrainingExample{newExample("u1", "i1", 1.0)}); err != nil {
		t.Fatal(err)
	}

	snap := cf.Snapshot()
	if snap.Version == "" || snap.Version[0] != 'v' {
		t.Errorf("Snapshot() version = %q, want v<unix>", snap.Version)
	}
	if len(snap.UserEmbeddings) != 1 || len(snap.ItemEmbeddings) != 1 {
		t.Fatalf("Snapshot() tables = (%d, %d), want (1, 1)", len(snap.UserEmbeddings), len(snap.ItemEmbeddings))
	}

	// snapshot is detached from live state
	orig, _ := cf.UserEmbedding("u1")
	snap.UserEmbeddings["u1"][0] = 999
	now, _ := cf.UserEmbedding("u1")
	if now[0] != orig[0] {
		t.Error("mutating snapshot leaked into live embeddings")
	}

	other := NewCollaborativeFiltering(4, 0.01, 0.01)
	snap.UserEmbeddings["u1"][0] = orig[0]
	if err := other.UpdateParameters(snap); err != nil {
		t.Fatalf("UpdateParameters() error = %v", err)
	}
	restored, ok := other.UserEmbedding("u1")
	if !ok {
		t.Fatal("UserEmbedding(u1) missing after UpdateParameters")
	}
	for i := range restored {
		if restored[i] != orig[i] {
			t.Errorf("restored[%d] = %v, want %v", i, restored[i], orig[i])
		}
	}
}

func TestUpdateParametersRejectsBadDimensions(t *testing.T) {
	cf := NewCollaborativeFiltering(4, 0.01, 0.01)

	err := cf.UpdateParameters(&core.ModelSnapshot{
		Version:        "v1",
		UserEmbeddings: map[string][]float64{"u1": {1, 2}},
		ItemEmbeddings: map[string][]float64{},
	})
	if err == nil {
		t.Fatal("UpdateParameters() accepted mismatched dimensions")
	}
	if !core.IsInvalidInput(err) {
		t.Errorf("UpdateParameters() error is not INVALID_INPUT: %v", err)
	}

	if err := cf.UpdateParameters(nil); err == nil {
		t.Error("UpdateParameters(nil) accepted")
	}
}
