package domain

import (
	"errors"
	"testing"
	"time"
)

func score(id string, s float64) TraitScore {
	return TraitScore{TraitID: id, Name: id, Score: s, Confidence: 0.5}
}

func TestNewTraitVectorValidates(t *testing.T) {
	if _, err := NewTraitVector(map[string]TraitScore{"calm": score("calm", 1.2)}, time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for score above 1, got %v", err)
	}
	if _, err := NewTraitVector(map[string]TraitScore{"calm": score("vocal", 0.2)}, time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatched key, got %v", err)
	}
	v, err := NewTraitVector(map[string]TraitScore{"calm": {Score: 0.2, Confidence: 0.1}}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Traits["calm"].TraitID != "calm" {
		t.Fatalf("expected trait id filled from key, got %+v", v.Traits["calm"])
	}
}

func TestTopOrdersByScoreThenID(t *testing.T) {
	v := TraitVector{Traits: map[string]TraitScore{
		"vocal":   score("vocal", 0.4),
		"calm":    score("calm", 0.9),
		"playful": score("playful", 0.4),
		"shy":     score("shy", 0.1),
	}}
	top := v.Top(3)
	want := []string{"calm", "playful", "vocal"}
	if len(top) != len(want) {
		t.Fatalf("expected %d traits, got %d", len(want), len(top))
	}
	for i, id := range want {
		if top[i].TraitID != id {
			t.Fatalf("expected %s at %d, got %s", id, i, top[i].TraitID)
		}
	}
	if got := len(v.Top(10)); got != 4 {
		t.Fatalf("expected all traits when n exceeds size, got %d", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	v := TraitVector{Traits: map[string]TraitScore{"calm": {TraitID: "calm", Score: 0.5, Evidence: []string{"a"}}}}
	c := v.Clone()
	c.Traits["calm"].Evidence[0] = "changed"
	if v.Traits["calm"].Evidence[0] != "a" {
		t.Fatalf("expected original evidence untouched")
	}
}

func TestBlendWith(t *testing.T) {
	a := TraitVector{Traits: map[string]TraitScore{"calm": score("calm", 0.8), "shy": score("shy", 0.3)}}
	b := TraitVector{Traits: map[string]TraitScore{"calm": score("calm", 0.2), "vocal": score("vocal", 0.6)}}

	out := a.BlendWith(b, 0.5, 1)
	if got := Round3(out.Traits["calm"].Score); got != 0.5 {
		t.Fatalf("expected calm 0.5, got %v", got)
	}
	if out.Traits["shy"].Score != 0.3 || out.Traits["vocal"].Score != 0.6 {
		t.Fatalf("expected one-sided traits copied, got %+v", out.Traits)
	}

	decayed := a.BlendWith(b, 0.5, 0.5)
	want := (0.8*0.25 + 0.2*0.5) / 0.75
	if got := decayed.Traits["calm"].Score; Round3(got) != Round3(want) {
		t.Fatalf("expected decayed calm %v, got %v", want, got)
	}
}

func TestSubjectKindAndValidation(t *testing.T) {
	if !SubjectKindDog.Valid() || SubjectKind("parrot").Valid() {
		t.Fatalf("unexpected kind validity")
	}
	if err := (Subject{Name: "Rex", Kind: "parrot"}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := (Subject{Name: "Rex", Kind: SubjectKindDog}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
