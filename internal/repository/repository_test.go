package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pet-persona/internal/domain"
)

// fakeRows reproduce pgx.Rows asignando cada valor al puntero destino.
type fakeRows struct {
	data   [][]interface{}
	idx    int
	err    error
	closed bool
}

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.data) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...interface{}) error {
	row := f.data[f.idx-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *int:
			*ptr = row[i].(int)
		case *bool:
			*ptr = row[i].(bool)
		case *float64:
			*ptr = row[i].(float64)
		case *[]byte:
			*ptr = row[i].([]byte)
		case *[]string:
			if row[i] != nil {
				*ptr = row[i].([]string)
			}
		case *time.Time:
			*ptr = row[i].(time.Time)
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func (f *fakeRows) Close() { f.closed = true }

func TestCollectSnapshots(t *testing.T) {
	now := time.Now().UTC()
	vector, _ := json.Marshal(domain.TraitVector{Traits: map[string]domain.TraitScore{
		"calm": {TraitID: "calm", Name: "Calm", Score: 0.6, Confidence: 0.3},
	}})
	evidence, _ := json.Marshal(domain.EvidenceRecord{Sources: []string{"user_docs"}, Weights: map[string]float64{"user_docs": 0.25}})
	rows := &fakeRows{data: [][]interface{}{
		{"snap-2", "s1", 2, vector, evidence, true, now},
		{"snap-1", "s1", 1, []byte(`{"traits":null}`), []byte(nil), false, now},
	}}

	snaps, err := collect(rows, scanSnapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rows.closed {
		t.Fatalf("expected rows closed")
	}
	if len(snaps) != 2 || snaps[0].Version != 2 || !snaps[0].IsCurrent {
		t.Fatalf("unexpected snapshots %+v", snaps)
	}
	if got := snaps[0].Vector.Traits["calm"].Score; got != 0.6 {
		t.Fatalf("expected calm 0.6, got %v", got)
	}
	if snaps[0].Evidence.Weights["user_docs"] != 0.25 {
		t.Fatalf("expected evidence decoded, got %+v", snaps[0].Evidence)
	}
	if snaps[1].Vector.Traits == nil {
		t.Fatalf("expected empty trait map instead of nil")
	}
}

func TestCollectPropagatesRowsError(t *testing.T) {
	rows := &fakeRows{err: errors.New("boom")}
	if _, err := collect(rows, scanSubject); err == nil {
		t.Fatalf("expected rows error")
	}
}

func TestScanSearchResultAndTurn(t *testing.T) {
	rows := &fakeRows{data: [][]interface{}{{"d1", "likes socks", []byte(`{"type":"user_story"}`), 0.8}}}
	results, err := collect(rows, scanSearchResult)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Metadata["type"] != "user_story" || results[0].Score != 0.8 {
		t.Fatalf("unexpected result %+v", results[0])
	}

	now := time.Now()
	turnRows := &fakeRows{data: [][]interface{}{{"t1", "s1", "sess", "hi", "Woof", "greeting", nil, []string{"Playful: game"}, now}}}
	turns, err := collect(turnRows, scanTurn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turns[0].Intent != domain.IntentGreeting || turns[0].Evidence == nil {
		t.Fatalf("unexpected turn %+v", turns[0])
	}
}

func TestContentHashNormalizes(t *testing.T) {
	a := ContentHash("Biscuit  loves\tthe park")
	b := ContentHash("biscuit loves the park ")
	if a != b {
		t.Fatalf("expected whitespace and case insensitive hash, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 256-bit hex digest, got %d chars", len(a))
	}
	if a == ContentHash("biscuit hates the park") {
		t.Fatalf("expected different content to hash differently")
	}
}

func TestMemoryDocumentRepositorySkipsDuplicates(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()
	first, err := repo.AddDocument(ctx, domain.Document{SubjectID: "s1", Type: domain.DocumentUserStory, Content: "He loves fetch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := repo.AddDocument(ctx, domain.Document{SubjectID: "s1", Type: domain.DocumentUserStory, Content: "he loves  fetch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected duplicate to return existing document")
	}
	if _, err := repo.AddDocument(ctx, domain.Document{SubjectID: "s2", Content: "He loves fetch"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs, _ := repo.ListDocuments(ctx, "s1")
	if len(docs) != 1 {
		t.Fatalf("expected one stored document, got %d", len(docs))
	}
	if _, err := repo.AddDocument(ctx, domain.Document{SubjectID: "s1", Content: "  "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank content, got %v", err)
	}
}

func TestMemorySubjectRepository(t *testing.T) {
	repo := NewMemorySubjectRepository()
	ctx := context.Background()
	s, err := repo.CreateSubject(ctx, domain.Subject{Name: " Biscuit ", Kind: domain.SubjectKindDog, Breed: "Beagle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" || s.Name != "Biscuit" || s.CreatedAt.IsZero() {
		t.Fatalf("expected prepared subject, got %+v", s)
	}
	if _, err := repo.CreateSubject(ctx, domain.Subject{Name: "Rex", Kind: "hamster"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := repo.GetSubject(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, _ := repo.ListSubjects(ctx)
	if len(all) != 1 || all[0].ID != s.ID {
		t.Fatalf("unexpected subjects %+v", all)
	}
}

func TestMemoryTurnRepositoryLimit(t *testing.T) {
	repo := NewMemoryTurnRepository()
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		_ = repo.SaveTurn(ctx, domain.ConversationTurn{SubjectID: "s1", SessionID: "x", UserText: text})
	}
	turns, _ := repo.ListTurns(ctx, "s1", "x", 2)
	if len(turns) != 2 || turns[0].UserText != "b" || turns[1].UserText != "c" {
		t.Fatalf("expected last two turns oldest first, got %+v", turns)
	}
}

func TestBaselineKey(t *testing.T) {
	if got := BaselineKey(domain.SubjectKindDog, " Golden Retriever "); got != "dog:golden retriever" {
		t.Fatalf("unexpected key %q", got)
	}
}
