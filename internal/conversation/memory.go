package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"pet-persona/internal/domain"
)

const (
	DefaultMaxTurns       = 20
	DefaultSummarizeAfter = 10

	// minSummaryTurns es el minimo de turnos para generar resumen.
	minSummaryTurns = 3
	toneWindow      = 5
)

type topic struct {
	name     string
	keywords []string
}

// El orden de declaracion define el orden de salida.
var topics = []topic{
	{"food", []string{"food", "eat", "treat", "hungry", "dinner", "snack"}},
	{"play", []string{"play", "game", "fetch", "toy", "ball", "fun"}},
	{"walk", []string{"walk", "outside", "park", "run"}},
	{"sleep", []string{"sleep", "tired", "nap", "rest", "bed"}},
	{"affection", []string{"love", "cuddle", "pet", "hug", "miss"}},
	{"health", []string{"sick", "vet", "hurt", "pain"}},
}

var (
	positiveWords  = []string{"love", "happy", "good", "great", "wonderful", "fun", "yay"}
	concernedWords = []string{"worried", "sick", "hurt", "sad", "scared", "help"}
	activityWords  = []string{"playing", "eating", "sleeping", "running", "walking", "cuddling", "watching", "waiting", "exploring"}
)

const (
	TonePositive  = "positive"
	ToneNeutral   = "neutral"
	ToneConcerned = "concerned"
)

// Context es lo extraido del historial reciente.
type Context struct {
	Topics         []string `json:"topics_discussed"`
	Tone           string   `json:"emotional_tone"`
	Activities     []string `json:"pet_mentioned_activities"`
	UserAskedAbout []string `json:"user_asked_about"`
}

// Memory guarda los turnos de una conversacion con un resumen acumulado.
type Memory struct {
	maxTurns       int
	summarizeAfter int

	mu      sync.Mutex
	turns   []domain.ConversationTurn
	summary string
}

// NewMemory valida los topes; valores no positivos usan los defaults.
func NewMemory(maxTurns, summarizeAfter int) (*Memory, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if summarizeAfter <= 0 {
		summarizeAfter = DefaultSummarizeAfter
	}
	if summarizeAfter > maxTurns {
		return nil, fmt.Errorf("%w: summarize_after %d exceeds max_turns %d", domain.ErrInvalidInput, summarizeAfter, maxTurns)
	}
	return &Memory{maxTurns: maxTurns, summarizeAfter: summarizeAfter}, nil
}

func (m *Memory) AddTurn(turn domain.ConversationTurn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turn)
	if len(m.turns) > m.maxTurns {
		m.updateSummary()
		m.turns = append([]domain.ConversationTurn(nil), m.turns[len(m.turns)-m.summarizeAfter:]...)
	}
	if len(m.turns) >= m.summarizeAfter && m.summary == "" {
		m.updateSummary()
	}
}

// Recent devuelve hasta n turnos, del mas viejo al mas nuevo.
func (m *Memory) Recent(n int) []domain.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent(n)
}

func (m *Memory) recent(n int) []domain.ConversationTurn {
	if n <= 0 {
		return []domain.ConversationTurn{}
	}
	start := len(m.turns) - n
	if start < 0 {
		start = 0
	}
	return append([]domain.ConversationTurn(nil), m.turns[start:]...)
}

func (m *Memory) FormattedHistory(n int) string {
	recent := m.Recent(n)
	lines := make([]string, 0, len(recent)*2)
	for _, t := range recent {
		lines = append(lines, "Human: "+t.UserText, "Pet: "+t.Reply)
	}
	return strings.Join(lines, "\n")
}

func (m *Memory) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.summary = ""
}

func (m *Memory) Context() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context()
}

func (m *Memory) context() Context {
	return Context{
		Topics:         m.topics(),
		Tone:           m.tone(),
		Activities:     m.activities(),
		UserAskedAbout: m.questions(),
	}
}

// updateSummary requiere el lock tomado.
func (m *Memory) updateSummary() {
	if len(m.turns) < minSummaryTurns {
		return
	}
	ctx := m.context()
	var parts []string
	if len(ctx.Topics) > 0 {
		parts = append(parts, "Discussed: "+strings.Join(firstN(ctx.Topics, 5), ", "))
	}
	if len(ctx.UserAskedAbout) > 0 {
		parts = append(parts, "User asked about: "+strings.Join(firstN(ctx.UserAskedAbout, 3), ", "))
	}
	parts = append(parts, "Tone: "+ctx.Tone)
	m.summary = strings.Join(parts, ". ")
}

func (m *Memory) topics() []string {
	found := make(map[string]bool)
	for _, t := range m.turns {
		text := strings.ToLower(t.UserText + " " + t.Reply)
		for _, tp := range topics {
			if containsAny(text, tp.keywords) {
				found[tp.name] = true
			}
		}
	}
	return inTopicOrder(found)
}

func (m *Memory) tone() string {
	var positive, concerned int
	for _, t := range m.recent(toneWindow) {
		text := strings.ToLower(t.UserText + " " + t.Reply)
		positive += countAny(text, positiveWords)
		concerned += countAny(text, concernedWords)
	}
	switch {
	case concerned > positive:
		return ToneConcerned
	case positive > 0:
		return TonePositive
	}
	return ToneNeutral
}

func (m *Memory) activities() []string {
	found := make(map[string]bool)
	for _, t := range m.turns {
		text := strings.ToLower(t.Reply)
		for _, a := range activityWords {
			if strings.Contains(text, a) {
				found[a] = true
			}
		}
	}
	out := []string{}
	for _, a := range activityWords {
		if found[a] {
			out = append(out, a)
		}
	}
	return out
}

func (m *Memory) questions() []string {
	found := make(map[string]bool)
	for _, t := range m.turns {
		if !strings.Contains(t.UserText, "?") {
			continue
		}
		text := strings.ToLower(t.UserText)
		for _, tp := range topics {
			if containsAny(text, tp.keywords) {
				found[tp.name] = true
			}
		}
	}
	return inTopicOrder(found)
}

func inTopicOrder(found map[string]bool) []string {
	out := []string{}
	for _, tp := range topics {
		if found[tp.name] {
			out = append(out, tp.name)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// countAny cuenta cuantas palabras distintas de la lista aparecen en text.
func countAny(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// MemoryStore mantiene una Memory por sujeto y sesion.
type MemoryStore struct {
	maxTurns       int
	summarizeAfter int

	mu       sync.Mutex
	memories map[string]*Memory
}

func NewMemoryStore(maxTurns, summarizeAfter int) (*MemoryStore, error) {
	if _, err := NewMemory(maxTurns, summarizeAfter); err != nil {
		return nil, err
	}
	return &MemoryStore{maxTurns: maxTurns, summarizeAfter: summarizeAfter, memories: make(map[string]*Memory)}, nil
}

// Get devuelve la memoria de la conversacion, creandola si no existe.
func (s *MemoryStore) Get(subjectID, sessionID string) *Memory {
	key := subjectID + "\x00" + sessionID
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[key]
	if !ok {
		m, _ = NewMemory(s.maxTurns, s.summarizeAfter)
		s.memories[key] = m
	}
	return m
}

// Forget descarta la memoria de una conversacion.
func (s *MemoryStore) Forget(subjectID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memories, subjectID+"\x00"+sessionID)
}
