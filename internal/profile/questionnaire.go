package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"pet-persona/internal/domain"
	"pet-persona/internal/traits"
)

// CategoryTraitWeights asocia cada categoria del cuestionario con rasgos y signo.
// "personality" solo aporta texto libre.
var CategoryTraitWeights = map[string]map[string]float64{
	"energy":       {"active": 1.0, "energetic": 1.0, "lazy": -1.0, "playful": 0.8},
	"social":       {"friendly": 1.0, "sociable": 1.0, "shy": -0.8, "reserved": -0.5},
	"temperament":  {"calm": 1.0, "anxious": -1.0, "gentle": 0.8, "aggressive": -0.8},
	"trainability": {"trainable": 1.0, "intelligent": 0.8, "obedient": 0.8, "stubborn": -0.8},
	"independence": {"independent": 1.0, "devoted": -0.5, "loyal": -0.3},
	"vocalization": {"vocal": 1.0, "quiet": -1.0},
	"personality":  {},
}

type signalWord struct {
	word  string
	value float64
}

// El orden importa: gana la primera palabra encontrada, positivas antes que negativas.
var (
	positiveSignals = []signalWord{
		{"yes", 0.8}, {"very", 1.0}, {"extremely", 1.0}, {"highly", 1.0}, {"always", 1.0},
		{"often", 0.6}, {"usually", 0.5}, {"sometimes", 0.0}, {"loves", 0.9}, {"enjoys", 0.7},
		{"high", 0.8},
	}
	negativeSignals = []signalWord{
		{"no", -0.8}, {"not", -0.5}, {"never", -1.0}, {"rarely", -0.6}, {"seldom", -0.5},
		{"low", -0.8}, {"hates", -0.9}, {"dislikes", -0.7},
	}
)

// QuestionnaireScorer combina texto libre y senales categoricas.
type QuestionnaireScorer struct {
	scorer  *traits.Scorer
	catalog *traits.Catalog
}

func NewQuestionnaireScorer(scorer *traits.Scorer) *QuestionnaireScorer {
	return &QuestionnaireScorer{scorer: scorer, catalog: scorer.Catalog()}
}

// Score valida las respuestas y devuelve puntajes por rasgo.
func (q *QuestionnaireScorer) Score(responses []domain.QuestionnaireResponse) (map[string]domain.TraitScore, error) {
	texts := make([]string, 0, len(responses))
	signals := make(map[string][]float64)
	categoryOf := make(map[string]string)

	for _, r := range responses {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		category := strings.ToLower(strings.TrimSpace(r.Category))
		weights, known := CategoryTraitWeights[category]
		if category != "" && !known {
			return nil, fmt.Errorf("%w: question %s has unknown category %q", domain.ErrInvalidInput, r.QuestionID, r.Category)
		}
		texts = append(texts, strings.TrimSpace(r.QuestionText+" "+r.Answer))

		signal, ok := ExtractSignal(r.Answer)
		if !ok {
			continue
		}
		for traitID, w := range weights {
			signals[traitID] = append(signals[traitID], signal*w)
			if _, seen := categoryOf[traitID]; !seen {
				categoryOf[traitID] = category
			}
		}
	}

	scores := q.scorer.ScoreTexts(texts)

	ids := make([]string, 0, len(signals))
	for id := range signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, traitID := range ids {
		vals := signals[traitID]
		var sum float64
		for _, v := range vals {
			sum += v
		}
		categoryScore := (sum/float64(len(vals)) + 1) / 2

		if existing, ok := scores[traitID]; ok {
			existing.Score = domain.Round3((existing.Score + categoryScore) / 2)
			existing.Confidence = domain.Round3(math.Max(existing.Confidence, 0.5))
			scores[traitID] = existing
			continue
		}
		def, ok := q.catalog.Get(traitID)
		if !ok {
			continue
		}
		scores[traitID] = domain.TraitScore{
			TraitID:    traitID,
			Name:       def.Name,
			Score:      domain.Round3(math.Max(0, math.Min(1, categoryScore))),
			Confidence: 0.5,
			Evidence:   []string{fmt.Sprintf("Based on questionnaire (%s category)", categoryOf[traitID])},
		}
	}
	return scores, nil
}

// ExtractSignal mapea una respuesta a [-1,1]. Escalas 1-5 y 1-10 o palabras clave.
func ExtractSignal(answer string) (float64, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	if n, err := strconv.Atoi(a); err == nil {
		switch {
		case n >= 1 && n <= 5:
			return float64(n-3) / 2, true
		case n >= 6 && n <= 10:
			return (float64(n) - 5.5) / 4.5, true
		}
		return 0, false
	}

	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(a, func(r rune) bool { return !unicode.IsLetter(r) }) {
		words[w] = struct{}{}
	}
	for _, list := range [][]signalWord{positiveSignals, negativeSignals} {
		for _, sw := range list {
			if _, ok := words[sw.word]; ok {
				return sw.value, true
			}
		}
	}
	return 0, false
}
