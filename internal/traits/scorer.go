package traits

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"pet-persona/internal/domain"
)

const (
	DefaultKeywordWeight = 1.0
	DefaultPhraseWeight  = 1.5

	// SaturationWeight normaliza el peso acumulado antes de la sigmoide.
	SaturationWeight = 10.0
	// ConfidenceMatchCeiling es la cantidad de coincidencias con confianza 1.
	ConfidenceMatchCeiling = 5.0
	MaxEvidencePerTrait    = 5

	fallbackSnippetRunes = 200
)

// ScorerOption ajusta los multiplicadores del Scorer.
type ScorerOption func(*Scorer)

func WithKeywordWeight(w float64) ScorerOption {
	return func(s *Scorer) { s.keywordWeight = w }
}

func WithPhraseWeight(w float64) ScorerOption {
	return func(s *Scorer) { s.phraseWeight = w }
}

// Scorer convierte textos en puntajes de rasgos. Es determinista y no guarda estado.
type Scorer struct {
	catalog       *Catalog
	lexicon       *Lexicon
	keywordWeight float64
	phraseWeight  float64
}

// NewScorer recibe catalogo y lexicon ya cargados por el host.
func NewScorer(catalog *Catalog, lexicon *Lexicon, opts ...ScorerOption) (*Scorer, error) {
	if catalog == nil || lexicon == nil {
		return nil, fmt.Errorf("%w: scorer needs catalog and lexicon", domain.ErrInvalidInput)
	}
	s := &Scorer{
		catalog:       catalog,
		lexicon:       lexicon,
		keywordWeight: DefaultKeywordWeight,
		phraseWeight:  DefaultPhraseWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.keywordWeight <= 0 {
		return nil, fmt.Errorf("%w: keyword weight must be positive", domain.ErrInvalidInput)
	}
	if s.phraseWeight <= s.keywordWeight {
		return nil, fmt.Errorf("%w: phrase weight %v must exceed keyword weight %v", domain.ErrInvalidInput, s.phraseWeight, s.keywordWeight)
	}
	return s, nil
}

// Catalog expone el catalogo inyectado.
func (s *Scorer) Catalog() *Catalog { return s.catalog }

type traitAccumulator struct {
	weights  []float64
	evidence []string
}

// ScoreText puntua un unico texto.
func (s *Scorer) ScoreText(text string) map[string]domain.TraitScore {
	return s.ScoreTexts([]string{text})
}

// ScoreTexts acumula coincidencias de todos los textos y devuelve un puntaje por rasgo.
// Textos vacios no aportan nada; una entrada completamente vacia devuelve un mapa vacio.
func (s *Scorer) ScoreTexts(texts []string) map[string]domain.TraitScore {
	acc := make(map[string]*traitAccumulator)
	add := func(traitID, snippet string, weight float64) {
		a, ok := acc[traitID]
		if !ok {
			a = &traitAccumulator{}
			acc[traitID] = a
		}
		a.weights = append(a.weights, weight)
		a.evidence = append(a.evidence, snippet)
	}

	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		sentences := SplitSentences(text)

		kw := s.lexicon.MatchKeywords(text)
		for _, traitID := range sortedKeys(kw) {
			for _, m := range kw[traitID] {
				add(traitID, keywordSnippet(text, sentences, m.Term), m.Weight*s.keywordWeight)
			}
		}

		ph := s.lexicon.MatchPhrases(text)
		for _, traitID := range sortedKeys(ph) {
			for _, m := range ph[traitID] {
				mult := s.phraseWeight
				if m.Keyword {
					mult = s.keywordWeight
				}
				add(traitID, phraseSnippet(text, sentences, m), m.Weight*mult)
			}
		}
	}

	out := make(map[string]domain.TraitScore, len(acc))
	for traitID, a := range acc {
		def, ok := s.catalog.Get(traitID)
		if !ok {
			continue
		}
		var total float64
		for _, w := range a.weights {
			total += w
		}
		raw := total / SaturationWeight
		score := math.Min(1, 1/(1+math.Exp(-3*(raw-0.5))))
		confidence := math.Min(1, float64(len(a.weights))/ConfidenceMatchCeiling)

		out[traitID] = domain.TraitScore{
			TraitID:    traitID,
			Name:       def.Name,
			Score:      domain.Round3(score),
			Confidence: domain.Round3(confidence),
			Evidence:   dedupe(a.evidence, MaxEvidencePerTrait),
		}
	}
	return out
}

// Vector puntua los textos y devuelve un TraitVector con la marca de tiempo dada.
func (s *Scorer) Vector(texts []string, at time.Time) domain.TraitVector {
	return domain.TraitVector{Traits: s.ScoreTexts(texts), ComputedAt: at}
}

func keywordSnippet(text string, sentences []string, word string) string {
	for _, sentence := range sentences {
		if containsWord(sentence, word) {
			return sentence
		}
	}
	return Truncate(text, fallbackSnippetRunes)
}

func phraseSnippet(text string, sentences []string, m Match) string {
	if m.pattern != nil {
		for _, sentence := range sentences {
			if m.pattern.MatchString(sentence) {
				return sentence
			}
		}
	}
	return Truncate(text, fallbackSnippetRunes)
}

func dedupe(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, limit)
	for _, it := range items {
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

func sortedKeys(m map[string][]Match) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
