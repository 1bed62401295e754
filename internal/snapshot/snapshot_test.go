package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"pet-persona/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func vector(scores map[string]float64) domain.TraitVector {
	v := domain.TraitVector{Traits: map[string]domain.TraitScore{}}
	for id, s := range scores {
		v.Traits[id] = domain.TraitScore{TraitID: id, Name: id, Score: s, Confidence: 0.5, Evidence: []string{"e"}}
	}
	return v
}

func TestCreateVersionsAndCurrent(t *testing.T) {
	m := NewManager(NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	if _, err := m.GetCurrent(ctx, "rex"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any snapshot, got %v", err)
	}

	for i := 1; i <= 3; i++ {
		snap, err := m.Create(ctx, "rex", vector(map[string]float64{"calm": 0.1 * float64(i)}), domain.EvidenceRecord{})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if snap.Version != i || !snap.IsCurrent {
			t.Fatalf("expected current version %d, got %+v", i, snap)
		}
	}

	current, err := m.GetCurrent(ctx, "rex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.Version != 3 {
		t.Fatalf("expected version 3 current, got %d", current.Version)
	}

	history, err := m.GetHistory(ctx, "rex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 || history[0].Version != 3 || history[2].Version != 1 {
		t.Fatalf("expected newest-first history, got %+v", history)
	}
	currents := 0
	for _, s := range history {
		if s.IsCurrent {
			currents++
		}
	}
	if currents != 1 {
		t.Fatalf("expected exactly one current snapshot, got %d", currents)
	}

	empty, err := m.GetHistory(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty history, got %v %v", empty, err)
	}
}

func TestSupersededSnapshotsAreImmutable(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ctx := context.Background()

	in := vector(map[string]float64{"calm": 0.4})
	first, err := m.Create(ctx, "rex", in, domain.EvidenceRecord{Sources: []string{"user_docs"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in.Traits["calm"] = domain.TraitScore{TraitID: "calm", Score: 0.9}
	first.Vector.Traits["calm"] = domain.TraitScore{TraitID: "calm", Score: 0.8}
	first.Evidence.Sources[0] = "tampered"

	stored, ok, err := m.Store().Version(ctx, "rex", 1)
	if err != nil || !ok {
		t.Fatalf("expected version 1, got %v %v", ok, err)
	}
	if stored.Vector.Traits["calm"].Score != 0.4 || stored.Evidence.Sources[0] != "user_docs" {
		t.Fatalf("expected stored snapshot untouched, got %+v", stored)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ctx := context.Background()

	bad := domain.TraitVector{Traits: map[string]domain.TraitScore{"calm": {TraitID: "calm", Score: 1.5}}}
	if _, err := m.Create(ctx, "rex", bad, domain.EvidenceRecord{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for out of range score, got %v", err)
	}
	if _, err := m.Create(ctx, "  ", vector(nil), domain.EvidenceRecord{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank subject, got %v", err)
	}

	var nilManager *Manager
	if _, err := nilManager.GetHistory(ctx, "rex"); !errors.Is(err, ErrManagerNotConfigured) {
		t.Fatalf("expected ErrManagerNotConfigured, got %v", err)
	}
}

func TestConcurrentCreateKeepsVersionsConsecutive(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Create(ctx, "rex", vector(map[string]float64{"calm": 0.5}), domain.EvidenceRecord{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := m.GetHistory(ctx, "rex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d snapshots, got %d", writers, len(history))
	}
	currents := 0
	for i, s := range history {
		if s.Version != writers-i {
			t.Fatalf("expected version %d at position %d, got %d", writers-i, i, s.Version)
		}
		if s.IsCurrent {
			currents++
		}
	}
	if currents != 1 || !history[0].IsCurrent {
		t.Fatalf("expected only the newest snapshot current, got %d currents", currents)
	}
}

func TestCompare(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ctx := context.Background()

	if _, err := m.Create(ctx, "rex", vector(map[string]float64{"calm": 0.5, "vocal": 0.6, "shy": 0.3}), domain.EvidenceRecord{}); err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if _, err := m.Create(ctx, "rex", vector(map[string]float64{"calm": 0.8, "vocal": 0.62, "playful": 0.7}), domain.EvidenceRecord{}); err != nil {
		t.Fatalf("create v2: %v", err)
	}

	diff, err := m.Compare(ctx, "rex", 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff.TotalTraitsFrom != 3 || diff.TotalTraitsTo != 3 {
		t.Fatalf("unexpected totals %d/%d", diff.TotalTraitsFrom, diff.TotalTraitsTo)
	}

	byTrait := map[string]domain.TraitChange{}
	for _, c := range diff.Changes {
		byTrait[c.TraitID] = c
	}
	if _, ok := byTrait["vocal"]; ok {
		t.Fatalf("expected insignificant vocal change omitted")
	}
	calm := byTrait["calm"]
	if calm.Status != domain.TraitChangeChanged || calm.Delta != 0.3 || *calm.Before != 0.5 || *calm.After != 0.8 {
		t.Fatalf("unexpected calm change %+v", calm)
	}
	if c := byTrait["playful"]; c.Status != domain.TraitChangeAdded || c.Before != nil || *c.After != 0.7 {
		t.Fatalf("unexpected playful change %+v", c)
	}
	if c := byTrait["shy"]; c.Status != domain.TraitChangeRemoved || c.After != nil || c.Delta != -0.3 {
		t.Fatalf("unexpected shy change %+v", c)
	}

	if _, err := m.Compare(ctx, "rex", 1, 9); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing version, got %v", err)
	}
	if _, err := m.Compare(ctx, "ghost", 1, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown subject, got %v", err)
	}
}
