package training

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/veckit/core"
	"github.com/rushteam/veckit/index"
	"github.com/rushteam/veckit/model"
	"github.com/rushteam/veckit/store"
	"github.com/rushteam/veckit/transport"
)

const testDim = 4

func newExample(userID, itemID string, label float64) core.TrainingExample {
	return core.TrainingExample{
		UserID:       userID,
		ItemID:       itemID,
		Label:        label,
		UserFeatures: []float64{0.1, 0.2, 0.3, 0.4},
		ItemFeatures: []float64{0.5, 0.6, 0.7, 0.8},
		Timestamp:    time.Now(),
	}
}

func newOrchestrator(opts Options) (*Orchestrator, *model.CollaborativeFiltering, *index.Linear, *store.Memory, *transport.Memory) {
	cf := model.NewCollaborativeFiltering(testDim, 0.01, 0.01)
	idx := index.NewLinear(testDim)
	st := store.NewMemory()
	tr := transport.NewMemory(16)
	o := New(cf, idx, nil, st, tr, nil, opts, nil)
	return o, cf, idx, st, tr
}

func TestAugmentNegativeSampling(t *testing.T) {
	o, _, _, _, _ := newOrchestrator(Options{NegativeSamplingRatio: 4.0, Seed: 1})

	positive := newExample("u1", "i1", 1.0)
	augmented := o.Augment([]core.TrainingExample{positive})

	// one positive plus four synthesized negatives
	if len(augmented) != 5 {
		t.Fatalf("Augment() = %d examples, want 5", len(augmented))
	}
	if augmented[0].ItemID != "i1" {
		t.Errorf("original example not first: %v", augmented[0].ItemID)
	}

	seen := map[string]bool{"i1": true}
	for _, neg := range augmented[1:] {
		if neg.Label != 0 {
			t.Errorf("negative label = %v, want 0", neg.Label)
		}
		if neg.UserID != "u1" {
			t.Errorf("negative user = %s, want u1", neg.UserID)
		}
		if seen[neg.ItemID] {
			t.Errorf("negative item id %s reused", neg.ItemID)
		}
		seen[neg.ItemID] = true
		if len(neg.ItemFeatures) != testDim {
			t.Errorf("negative item features dim = %d, want %d", len(neg.ItemFeatures), testDim)
		}
		if neg.Timestamp != positive.Timestamp {
			t.Error("negative did not inherit source timestamp")
		}
	}
}

func TestAugmentRatioCap(t *testing.T) {
	o, _, _, _, _ := newOrchestrator(Options{NegativeSamplingRatio: 50, Seed: 1})
	augmented := o.Augment([]core.TrainingExample{newExample("u1", "i1", 1.0)})
	if len(augmented) != 1+maxNegativesPerPositive {
		t.Errorf("Augment() = %d examples, want %d", len(augmented), 1+maxNegativesPerPositive)
	}
}

func TestAugmentSkipsNonPositives(t *testing.T) {
	o, _, _, _, _ := newOrchestrator(Options{NegativeSamplingRatio: 4.0, Seed: 1})
	augmented := o.Augment([]core.TrainingExample{
		newExample("u1", "i1", 0.0),
		newExample("u1", "i2", 0.5),
	})
	if len(augmented) != 2 {
		t.Errorf("Augment() = %d examples, want 2 (no negatives for label <= 0.5)", len(augmented))
	}
}

func TestFlushTrainsAndPropagates(t *testing.T) {
	o, cf, idx, st, _ := newOrchestrator(Options{NegativeSamplingRatio: 1.0, Seed: 1})
	ctx := context.Background()

	if err := o.Flush(ctx, []core.TrainingExample{newExample("u1", "i1", 1.0)}); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	users, items := cf.Stats()
	if users != 1 || items != 2 {
		t.Errorf("Stats() = (%d, %d), want 1 user and 2 items (positive + negative)", users, items)
	}

	// propagation pushed item feature vectors into store and index
	if _, err := st.GetEmbedding(ctx, "i1"); err != nil {
		t.Errorf("store missing i1: %v", err)
	}
	if _, err := st.GetEmbedding(ctx, "u1"); err != nil {
		t.Errorf("store missing u1: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("index Len() = %d, want 2", idx.Len())
	}

	flushes, _ := o.Stats()
	if flushes != 1 {
		t.Errorf("Stats() flushes = %d, want 1", flushes)
	}

	audit := o.AuditLog()
	if len(audit) != 1 {
		t.Fatalf("AuditLog() = %d batches, want 1", len(audit))
	}
	if audit[0].BatchID == "" {
		t.Error("audit batch id is empty")
	}
	if len(audit[0].Examples) != 2 {
		t.Errorf("audit batch examples = %d, want 2", len(audit[0].Examples))
	}
}

func TestFlushPropagatesUserEmbeddings(t *testing.T) {
	cf := model.NewCollaborativeFiltering(testDim, 0.01, 0.01)
	itemIdx := index.NewLinear(testDim)
	userIdx := index.NewLinear(testDim)
	tr := transport.NewMemory(16)
	o := New(cf, itemIdx, userIdx, store.NewMemory(), tr, nil, Options{NegativeSamplingRatio: 1.0, Seed: 1}, nil)

	example := newExample("u1", "i1", 1.0)
	if err := o.Flush(context.Background(), []core.TrainingExample{example}); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if userIdx.Len() != 1 {
		t.Fatalf("user index Len() = %d, want 1", userIdx.Len())
	}
	results, err := userIdx.SearchSimilar(example.UserFeatures, 1)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "u1" {
		t.Errorf("user index results = %v, want [u1]", results)
	}

	// item vectors stay in their own index
	if itemIdx.Len() != 2 {
		t.Errorf("item index Len() = %d, want 2 (positive + negative)", itemIdx.Len())
	}
	if results, err := itemIdx.SearchSimilar(example.UserFeatures, 10); err == nil {
		for _, r := range results {
			if r.ID == "u1" {
				t.Error("user vector leaked into the item index")
			}
		}
	}
}

func TestFlushLastOccurrenceWins(t *testing.T) {
	o, _, idx, st, _ := newOrchestrator(Options{NegativeSamplingRatio: 1.0, Seed: 1})
	ctx := context.Background()

	first := newExample("u1", "i1", 0.0)
	second := newExample("u1", "i1", 0.0)
	second.ItemFeatures = []float64{9, 9, 9, 9}

	if err := o.Flush(ctx, []core.TrainingExample{first, second}); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got, err := st.GetEmbedding(ctx, "i1")
	if err != nil {
		t.Fatalf("GetEmbedding(i1) error = %v", err)
	}
	for i, v := range got {
		if v != second.ItemFeatures[i] {
			t.Fatalf("stored i1[%d] = %v, want last occurrence %v", i, v, second.ItemFeatures[i])
		}
	}
	if idx.Len() != 1 {
		t.Errorf("index Len() = %d, want 1", idx.Len())
	}
}

// failingStore rejects every write, simulating a persistence outage.
type failingStore struct{}

func (failingStore) GetEmbedding(ctx context.Context, id string) ([]float64, error) {
	return nil, core.ErrStoreNotFound
}

func (failingStore) PutEmbedding(ctx context.Context, id string, embedding []float64) error {
	return core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: connection refused")
}

func (failingStore) Close() error { return nil }

func TestFlushSurvivesStoreFailure(t *testing.T) {
	cf := model.NewCollaborativeFiltering(testDim, 0.01, 0.01)
	idx := index.NewLinear(testDim)
	tr := transport.NewMemory(16)
	o := New(cf, idx, nil, failingStore{}, tr, nil, Options{NegativeSamplingRatio: 0, Seed: 1}, nil)

	if err := o.Flush(context.Background(), []core.TrainingExample{newExample("u1", "i1", 1.0)}); err != nil {
		t.Fatalf("Flush() error = %v, want nil despite store failures", err)
	}
	if idx.Len() != 1 {
		t.Errorf("index Len() = %d, want 1 (indexing continues when store writes fail)", idx.Len())
	}
	users, items := cf.Stats()
	if users != 1 || items != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", users, items)
	}
}

func TestFlushEmptyBatch(t *testing.T) {
	o, _, _, _, _ := newOrchestrator(Options{})
	if err := o.Flush(context.Background(), nil); err != nil {
		t.Errorf("Flush(nil) error = %v", err)
	}
	flushes, _ := o.Stats()
	if flushes != 0 {
		t.Errorf("Stats() flushes = %d, want 0 for empty batch", flushes)
	}
}

func TestStartFlushesOnBatchSize(t *testing.T) {
	o, cf, _, _, tr := newOrchestrator(Options{
		BatchSize:             2,
		FlushInterval:         time.Hour,
		SnapshotInterval:      time.Hour,
		NegativeSamplingRatio: 1.0,
		Seed:                  1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	if err := tr.Publish(ctx, newExample("u1", "i1", 1.0)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Publish(ctx, newExample("u2", "i2", 0.0)); err != nil {
		t.Fatal(err)
	}

	// the batch fills immediately, not on the hour-long timer
	deadline := time.After(2 * time.Second)
	for {
		if flushes, _ := o.Stats(); flushes >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("batch-size flush did not happen")
		case <-time.After(10 * time.Millisecond):
		}
	}

	users, _ := cf.Stats()
	if users != 2 {
		t.Errorf("Stats() users = %d, want 2", users)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestStartFlushesOnTimeout(t *testing.T) {
	o, cf, _, _, tr := newOrchestrator(Options{
		BatchSize:             100,
		FlushInterval:         50 * time.Millisecond,
		SnapshotInterval:      time.Hour,
		NegativeSamplingRatio: 1.0,
		Seed:                  1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	if err := tr.Publish(ctx, newExample("u1", "i1", 1.0)); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if flushes, _ := o.Stats(); flushes >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout flush did not happen")
		case <-time.After(10 * time.Millisecond):
		}
	}

	users, _ := cf.Stats()
	if users != 1 {
		t.Errorf("Stats() users = %d, want 1", users)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestSaveSnapshot(t *testing.T) {
	var saved *core.ModelSnapshot
	sink := core.CheckpointSinkFunc(func(ctx context.Context, snapshot *core.ModelSnapshot) error {
		saved = snapshot
		return nil
	})

	cf := model.NewCollaborativeFiltering(testDim, 0.01, 0.01)
	idx := index.NewLinear(testDim)
	o := New(cf, idx, nil, store.NewMemory(), transport.NewMemory(1), sink, Options{}, nil)

	if err := cf.Train(context.Background(), []core.TrainingExample{newExample("u1", "i1", 1.0)}); err != nil {
		t.Fatal(err)
	}
	if err := o.SaveSnapshot(context.Background()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	if saved == nil {
		t.Fatal("sink did not receive a snapshot")
	}
	if len(saved.UserEmbeddings) != 1 {
		t.Errorf("snapshot users = %d, want 1", len(saved.UserEmbeddings))
	}
	_, snapshots := o.Stats()
	if snapshots != 1 {
		t.Errorf("Stats() snapshots = %d, want 1", snapshots)
	}
}

func TestResetAudit(t *testing.T) {
	o, _, _, _, _ := newOrchestrator(Options{NegativeSamplingRatio: 1.0, Seed: 1})
	if err := o.Flush(context.Background(), []core.TrainingExample{newExample("u1", "i1", 0.0)}); err != nil {
		t.Fatal(err)
	}
	if len(o.AuditLog()) != 1 {
		t.Fatal("audit log empty after flush")
	}
	o.ResetAudit()
	if len(o.AuditLog()) != 0 {
		t.Error("audit log not cleared")
	}
}
