package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"pet-persona/internal/domain"
	"pet-persona/internal/retrieval"
	"pet-persona/internal/safety"
	"pet-persona/internal/snapshot"
)

func TestMemoryCompactsAndSummarizes(t *testing.T) {
	m, err := NewMemory(4, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		m.AddTurn(domain.ConversationTurn{UserText: "Want to play fetch?", Reply: "Yay, playing is fun"})
	}
	want := "Discussed: play. User asked about: play. Tone: positive"
	if got := m.Summary(); got != want {
		t.Fatalf("expected summary %q, got %q", want, got)
	}

	m.AddTurn(domain.ConversationTurn{UserText: "ok", Reply: "ok"})
	m.AddTurn(domain.ConversationTurn{UserText: "last one", Reply: "sure"})
	if m.Len() != 2 {
		t.Fatalf("expected compaction to keep 2 turns, got %d", m.Len())
	}
	recent := m.Recent(10)
	if recent[1].UserText != "last one" {
		t.Fatalf("expected newest turn last, got %+v", recent)
	}
	if m.Summary() == "" {
		t.Fatalf("expected summary kept after compaction")
	}
	if got := m.FormattedHistory(1); got != "Human: last one\nPet: sure" {
		t.Fatalf("unexpected formatted history %q", got)
	}

	m.Clear()
	if m.Len() != 0 || m.Summary() != "" {
		t.Fatalf("expected cleared memory")
	}
}

func TestMemorySummaryNeedsThreeTurns(t *testing.T) {
	m, err := NewMemory(10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.AddTurn(domain.ConversationTurn{UserText: "hello", Reply: "hi"})
	m.AddTurn(domain.ConversationTurn{UserText: "treat?", Reply: "yum"})
	if m.Summary() != "" {
		t.Fatalf("expected no summary with two turns, got %q", m.Summary())
	}
}

func TestMemoryContext(t *testing.T) {
	m, _ := NewMemory(0, 0)
	m.AddTurn(domain.ConversationTurn{UserText: "I'm worried, he seems sick", Reply: "Oh no, I was sleeping all day"})
	m.AddTurn(domain.ConversationTurn{UserText: "Should we go to the vet?", Reply: "I'd rather be walking"})

	got := m.Context()
	want := Context{
		Topics:         []string{"walk", "sleep", "health"},
		Tone:           ToneConcerned,
		Activities:     []string{"sleeping", "walking"},
		UserAskedAbout: []string{"health"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected context (-want +got):\n%s", diff)
	}
}

func TestNewMemoryRejectsInvertedCaps(t *testing.T) {
	if _, err := NewMemory(5, 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := NewMemoryStore(5, 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput from store, got %v", err)
	}
}

func TestMemoryStoreKeysBySession(t *testing.T) {
	s, err := NewMemoryStore(DefaultMaxTurns, DefaultSummarizeAfter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Get("s1", "a").AddTurn(domain.ConversationTurn{UserText: "hi"})
	if s.Get("s1", "a").Len() != 1 || s.Get("s1", "b").Len() != 0 {
		t.Fatalf("expected memories isolated per session")
	}
	s.Forget("s1", "a")
	if s.Get("s1", "a").Len() != 0 {
		t.Fatalf("expected forgotten memory to start empty")
	}
}

func TestParseVoiceRequiresDefaultBranch(t *testing.T) {
	raw := []byte(`
vocabularies:
  dog: {greetings: [Woof], affirmatives: [Yes], expressions: ["*wag*"]}
  cat: {greetings: [Meow], affirmatives: [Indeed], expressions: ["*purr*"]}
replies:
  greeting:
    - when: [playful]
      lines: [Hi]
`)
	if _, err := ParseVoice(raw); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func mustVoice(t *testing.T) *Voice {
	t.Helper()
	v, err := DefaultVoice()
	if err != nil {
		t.Fatalf("load default voice: %v", err)
	}
	return v
}

func playfulVector() domain.TraitVector {
	return domain.TraitVector{Traits: map[string]domain.TraitScore{
		"playful":   {TraitID: "playful", Name: "Playful", Score: 0.9, Confidence: 0.6},
		"energetic": {TraitID: "energetic", Name: "Energetic", Score: 0.8, Confidence: 0.5},
		"curious":   {TraitID: "curious", Name: "Curious", Score: 0.7, Confidence: 0.4},
	}}
}

func TestBuildProfile(t *testing.T) {
	v := mustVoice(t)
	subject := domain.Subject{ID: "s1", Name: "Biscuit", Kind: domain.SubjectKindDog}

	p := v.BuildProfile(subject, playfulVector())
	if p.VoiceName != "Biscuit's Voice" {
		t.Fatalf("unexpected voice name %q", p.VoiceName)
	}
	if !strings.HasPrefix(p.PersonaSummary, "Biscuit is a dog who is playful, energetic, and curious.") {
		t.Fatalf("unexpected persona summary %q", p.PersonaSummary)
	}
	if p.StyleGuide[0] != v.Vocabulary(domain.SubjectKindDog).StyleBase {
		t.Fatalf("expected style base first, got %q", p.StyleGuide[0])
	}
	if len(p.DoSay) != maxRules || p.DoSay[0] != "Suggest games" {
		t.Fatalf("unexpected do rules %v", p.DoSay)
	}
	if len(p.SignatureActions) != 3 || len(p.ExamplePhrases) > maxExamples {
		t.Fatalf("unexpected profile sizes %+v", p)
	}
	if diff := cmp.Diff(p, v.BuildProfile(subject, playfulVector())); diff != "" {
		t.Fatalf("expected deterministic profile (-first +second):\n%s", diff)
	}

	empty := v.BuildProfile(domain.Subject{ID: "s2", Name: "Miso", Kind: domain.SubjectKindCat}, domain.TraitVector{})
	if !strings.HasPrefix(empty.PersonaSummary, "Miso is a cat.") {
		t.Fatalf("unexpected summary without traits %q", empty.PersonaSummary)
	}
}

type mockSubjects struct {
	subjects map[string]domain.Subject
}

func (m *mockSubjects) GetSubject(_ context.Context, id string) (domain.Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return domain.Subject{}, domain.ErrNotFound
	}
	return s, nil
}

type mockSink struct {
	mu    sync.Mutex
	turns []domain.ConversationTurn
	err   error
}

func (m *mockSink) SaveTurn(_ context.Context, turn domain.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return m.err
}

type mockRecorder struct {
	replies []string
	safety  []string
}

func (m *mockRecorder) ObserveReply(intent string, _ time.Duration) {
	m.replies = append(m.replies, intent)
}

func (m *mockRecorder) ObserveSafety(stage, category string) {
	m.safety = append(m.safety, stage+":"+category)
}

func (m *mockRecorder) ObserveRetrieval(int, error) {}

type fixture struct {
	composer  *Composer
	snapshots *snapshot.MemoryStore
	indexes   *retrieval.Registry
	sink      *mockSink
	recorder  *mockRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	subjects := &mockSubjects{subjects: map[string]domain.Subject{
		"dog-1": {ID: "dog-1", Name: "Biscuit", Kind: domain.SubjectKindDog},
		"cat-1": {ID: "cat-1", Name: "Miso", Kind: domain.SubjectKindCat},
	}}
	f := fixture{
		snapshots: snapshot.NewMemoryStore(),
		indexes:   retrieval.NewRegistry(retrieval.MemoryFactory(retrieval.NewHashEmbedder(0))),
		sink:      &mockSink{},
		recorder:  &mockRecorder{},
	}
	c, err := NewComposer(subjects, f.snapshots, f.indexes, mustVoice(t), zap.NewNop(),
		WithTurnSink(f.sink),
		WithRecorder(f.recorder),
	)
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}
	f.composer = c
	return f
}

func TestRespondSafetyShortCircuit(t *testing.T) {
	f := newFixture(t)
	reply, err := f.composer.Respond(context.Background(), "dog-1", "sess", "I want to end my life")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Intent != domain.IntentSafetyConcern || reply.Reply != safety.CrisisSupport {
		t.Fatalf("expected crisis support, got %+v", reply)
	}
	if diff := cmp.Diff([]string{ConstraintSafetyResponse}, reply.Constraints); diff != "" {
		t.Fatalf("unexpected constraints (-want +got):\n%s", diff)
	}
	if len(f.sink.turns) != 0 || f.composer.Memory("dog-1", "sess").Len() != 0 {
		t.Fatalf("expected safety replies kept out of memory and storage")
	}
	if diff := cmp.Diff([]string{"input:crisis"}, f.recorder.safety); diff != "" {
		t.Fatalf("unexpected safety events (-want +got):\n%s", diff)
	}
}

func TestRespondPlayUsesTopTraits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.snapshots.Create(ctx, "dog-1", playfulVector(), domain.EvidenceRecord{}); err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	reply, err := f.composer.Respond(ctx, "dog-1", "sess", "Do you want to play?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Intent != domain.IntentPlay {
		t.Fatalf("expected play intent, got %s", reply.Intent)
	}
	lines := mustVoice(t).branch("play", []string{"playful"})
	if !hasAnyPrefix(reply.Reply, lines) {
		t.Fatalf("expected playful play line, got %q", reply.Reply)
	}
	want := []string{"Playful: Cheerful, game", "Energetic: Excited, animated", "Curious: Interested, questioning"}
	if diff := cmp.Diff(want, reply.Constraints); diff != "" {
		t.Fatalf("unexpected constraints (-want +got):\n%s", diff)
	}
	if len(f.sink.turns) != 1 || f.sink.turns[0].Reply != reply.Reply {
		t.Fatalf("expected turn persisted, got %+v", f.sink.turns)
	}
	if f.composer.Memory("dog-1", "sess").Len() != 1 {
		t.Fatalf("expected turn in memory")
	}
}

func TestRespondWantsUsesPhraseTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.snapshots.Create(ctx, "dog-1", playfulVector(), domain.EvidenceRecord{}); err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	reply, err := f.composer.Respond(ctx, "dog-1", "", "What do you want?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Intent != domain.IntentQuestion {
		t.Fatalf("expected question intent, got %s", reply.Intent)
	}
	if !hasAnyPrefix(reply.Reply, mustVoice(t).PhraseTemplates["playful"]) {
		t.Fatalf("expected playful phrase, got %q", reply.Reply)
	}
	if len(f.sink.turns) != 0 {
		t.Fatalf("expected no persistence without session, got %d turns", len(f.sink.turns))
	}
}

func TestRespondQuotesEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	idx, err := f.indexes.For("cat-1")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	story := "Miso steals socks from the laundry basket every single morning and hides them under the couch."
	if err := idx.Add(ctx, "d1", story, nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	reply, err := f.composer.Respond(ctx, "cat-1", "", "Tell me about the socks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{story}, reply.EvidenceUsed); diff != "" {
		t.Fatalf("unexpected evidence (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(reply.Reply, story+"...") {
		t.Fatalf("expected quoted evidence in %q", reply.Reply)
	}
	if len(reply.Constraints) != 0 {
		t.Fatalf("expected no constraints without snapshot, got %v", reply.Constraints)
	}
}

func TestRespondIsDeterministic(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	ctx := context.Background()
	for _, text := range []string{"hello!", "good boy", "I'm hungry", "nice weather today"} {
		ra, err := a.composer.Respond(ctx, "dog-1", "s", text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rb, _ := b.composer.Respond(ctx, "dog-1", "s", text)
		if ra.Reply != rb.Reply {
			t.Fatalf("expected identical replies for %q, got %q and %q", text, ra.Reply, rb.Reply)
		}
		if strings.Contains(ra.Reply, "{affirmative}") {
			t.Fatalf("expected placeholder filled, got %q", ra.Reply)
		}
	}
}

func TestRespondSinkFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("db down")
	reply, err := f.composer.Respond(context.Background(), "dog-1", "sess", "bye")
	if err != nil {
		t.Fatalf("expected sink failure swallowed, got %v", err)
	}
	if reply.Intent != domain.IntentFarewell || len(f.sink.turns) != 1 {
		t.Fatalf("expected farewell persisted once, got %+v / %d", reply, len(f.sink.turns))
	}
}

func TestRespondUnknownSubject(t *testing.T) {
	f := newFixture(t)
	_, err := f.composer.Respond(context.Background(), "nope", "", "hello")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.composer.VoiceProfile(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from voice profile, got %v", err)
	}
}

func TestNilComposer(t *testing.T) {
	var c *Composer
	if _, err := c.Respond(context.Background(), "x", "", "hi"); !errors.Is(err, ErrComposerNotConfigured) {
		t.Fatalf("expected ErrComposerNotConfigured, got %v", err)
	}
	if _, err := NewComposer(nil, nil, nil, nil, nil); !errors.Is(err, ErrComposerNotConfigured) {
		t.Fatalf("expected constructor to reject missing collaborators, got %v", err)
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
