package intent

import (
	"math"
	"testing"

	"pet-persona/internal/domain"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()
	cases := []struct {
		text       string
		intent     domain.Intent
		confidence float64
	}{
		{"Hello there!", domain.IntentGreeting, 0.5},
		{"Do you want to play?", domain.IntentPlay, 1},
		{"What is your name?", domain.IntentQuestion, 1},
		{"The weather is nice", domain.IntentStatement, 0.5},
		{"   ", domain.IntentUnknown, 0},
		{"sit", domain.IntentCommand, 0.75},
		{"good boy, time to train", domain.IntentAffection, 0.5},
		{"hi, I'm hungry", domain.IntentGreeting, 0.5},
		{"Are you feeling sick? Should we see the vet", domain.IntentHealth, 0.5},
		{"Goodbye, talk to you later", domain.IntentFarewell, 1},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := c.Classify(tc.text)
			if got.Intent != tc.intent {
				t.Fatalf("expected intent %s, got %s", tc.intent, got.Intent)
			}
			if math.Abs(got.Confidence-tc.confidence) > 1e-9 {
				t.Fatalf("expected confidence %v, got %v", tc.confidence, got.Confidence)
			}
		})
	}
}

func TestClassifyConfidenceInRange(t *testing.T) {
	c := NewClassifier()
	for _, text := range []string{"hi hello hey", "play fetch, let's play, run!", "why do you keep barking? behave", "?"} {
		got := c.Classify(text)
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Fatalf("%q: confidence out of range: %v", text, got.Confidence)
		}
	}
}

func TestAllMatches(t *testing.T) {
	c := NewClassifier()

	all := c.AllMatches("Do you want to play?")
	if len(all) != 2 {
		t.Fatalf("expected question and play, got %+v", all)
	}
	seen := map[domain.Intent]bool{}
	for i, r := range all {
		seen[r.Intent] = true
		if i > 0 && r.Confidence > all[i-1].Confidence {
			t.Fatalf("expected descending confidence, got %+v", all)
		}
	}
	if !seen[domain.IntentQuestion] || !seen[domain.IntentPlay] {
		t.Fatalf("expected question and play, got %+v", all)
	}

	if got := c.AllMatches(""); len(got) != 1 || got[0].Intent != domain.IntentUnknown {
		t.Fatalf("expected unknown for empty text, got %+v", got)
	}
	if got := c.AllMatches("The weather is nice"); len(got) != 1 || got[0].Intent != domain.IntentStatement || got[0].Confidence != 0.5 {
		t.Fatalf("expected statement fallback, got %+v", got)
	}
}

func TestTuningConstantsPinned(t *testing.T) {
	if QuestionDampening != 0.6 || ConfidenceScale != 1.5 || StatementConfidence != 0.5 {
		t.Fatalf("unexpected tuning constants: %v %v %v", QuestionDampening, ConfidenceScale, StatementConfidence)
	}
	want := map[domain.Intent]int{
		domain.IntentQuestion: 0,
		domain.IntentCommand:  1,
		domain.IntentTraining: 1,
		domain.IntentBehavior: 2,
		domain.IntentHealth:   2,
		domain.IntentPlay:     3,
		domain.IntentGreeting: 3,
	}
	for _, entry := range patternTable {
		if p, ok := want[entry.intent]; ok && p != entry.priority {
			t.Fatalf("expected %s priority %d, got %d", entry.intent, p, entry.priority)
		}
	}
}
