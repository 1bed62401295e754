package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pet-persona/internal/domain"
	"pet-persona/internal/repository"
)

type failingBaselineCache struct{}

func (failingBaselineCache) Get(context.Context, string) (domain.TraitVector, bool, error) {
	return domain.TraitVector{}, false, errors.New("cache down")
}

func (failingBaselineCache) Set(context.Context, string, domain.TraitVector) error {
	return errors.New("cache down")
}

func TestBaselineServiceSpeciesFallback(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBaselineRepository()
	svc := NewBaselineService(store, NewMemoryBaselineCache(0), mustScorer(t), nil)

	if _, ok, err := svc.Baseline(ctx, domain.SubjectKindDog, "Beagle"); ok || err != nil {
		t.Fatalf("expected no baseline yet, ok=%v err=%v", ok, err)
	}
	species, err := svc.SetBaseline(ctx, domain.SubjectKindDog, "", []string{"Dogs are loyal companions."})
	if err != nil {
		t.Fatalf("set species baseline: %v", err)
	}
	got, ok, err := svc.Baseline(ctx, domain.SubjectKindDog, "Beagle")
	if err != nil || !ok {
		t.Fatalf("expected species fallback, ok=%v err=%v", ok, err)
	}
	if _, has := got.Get("loyal"); !has || got.Len() != species.Len() {
		t.Fatalf("expected species vector, got %v", got.IDs())
	}

	if _, err := svc.SetBaseline(ctx, domain.SubjectKindDog, "Beagle", []string{"Beagles are curious and playful."}); err != nil {
		t.Fatalf("set breed baseline: %v", err)
	}
	got, _, _ = svc.Baseline(ctx, domain.SubjectKindDog, "beagle")
	if _, has := got.Get("curious"); !has {
		t.Fatalf("expected breed baseline to replace cached fallback, got %v", got.IDs())
	}
}

func TestBaselineServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewBaselineService(repository.NewMemoryBaselineRepository(), nil, mustScorer(t), nil)
	if _, err := svc.SetBaseline(ctx, domain.SubjectKind("bird"), "", []string{"x"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for kind, got %v", err)
	}
	if _, err := svc.SetBaseline(ctx, domain.SubjectKindCat, "", []string{" ", ""}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank texts, got %v", err)
	}
	var nilSvc *BaselineService
	if _, _, err := nilSvc.Baseline(ctx, domain.SubjectKindCat, ""); !errors.Is(err, ErrBaselineServiceNotConfigured) {
		t.Fatalf("expected ErrBaselineServiceNotConfigured, got %v", err)
	}
}

func TestBaselineServiceCacheErrorsAreLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	svc := NewBaselineService(repository.NewMemoryBaselineRepository(), failingBaselineCache{}, mustScorer(t), zap.New(core))

	if _, err := svc.SetBaseline(ctx, domain.SubjectKindCat, "", []string{"Cats are independent."}); err != nil {
		t.Fatalf("expected cache failure to be tolerated, got %v", err)
	}
	if _, ok, err := svc.Baseline(ctx, domain.SubjectKindCat, "Siamese"); err != nil || !ok {
		t.Fatalf("expected store read despite cache failure, ok=%v err=%v", ok, err)
	}
	if logs.FilterMessage("baseline cache get failed").Len() != 1 {
		t.Fatalf("expected cache get failure logged, got %d entries", logs.Len())
	}
	if logs.FilterMessage("baseline cache set failed").Len() != 2 {
		t.Fatalf("expected both cache writes logged, got %d", logs.FilterMessage("baseline cache set failed").Len())
	}
}

func TestRedisBaselineCache(t *testing.T) {
	ctx := context.Background()
	kv := newMockRedisKV()
	cache := &redisBaselineCache{client: kv, ttl: time.Hour, prefix: "persona:baseline:"}

	if _, ok, err := cache.Get(ctx, "dog:"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	vec := domain.TraitVector{Traits: map[string]domain.TraitScore{
		"loyal": {TraitID: "loyal", Score: 0.4, Confidence: 0.3, Evidence: []string{"loyal"}},
	}}
	if err := cache.Set(ctx, "dog:", vec); err != nil {
		t.Fatalf("set: %v", err)
	}
	if kv.ttls["persona:baseline:dog:"] != time.Hour {
		t.Fatalf("expected ttl set, got %v", kv.ttls)
	}
	got, ok, err := cache.Get(ctx, "dog:")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if s, _ := got.Get("loyal"); s.Score != 0.4 {
		t.Fatalf("unexpected cached vector %+v", got)
	}

	kv.values["persona:baseline:bad"] = "{"
	if _, _, err := cache.Get(ctx, "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
}
