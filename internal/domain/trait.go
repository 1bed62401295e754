package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// SubjectKind identifica la especie del sujeto (perro, gato).
type SubjectKind string

const (
	SubjectKindDog SubjectKind = "dog"
	SubjectKindCat SubjectKind = "cat"
)

// Valid indica si el tipo es uno de los soportados por el catalogo.
func (k SubjectKind) Valid() bool {
	return k == SubjectKindDog || k == SubjectKindCat
}

// TraitDefinition describe un rasgo del catalogo. Inmutable.
type TraitDefinition struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	AppliesTo   []SubjectKind `json:"applies_to" yaml:"applies_to"`
	Opposite    string        `json:"opposite,omitempty" yaml:"opposite,omitempty"`
}

// AppliesToKind indica si el rasgo aplica a la especie dada.
func (d TraitDefinition) AppliesToKind(kind SubjectKind) bool {
	for _, k := range d.AppliesTo {
		if k == kind {
			return true
		}
	}
	return false
}

// TraitScore es el puntaje de un rasgo con su evidencia textual.
type TraitScore struct {
	TraitID    string   `json:"trait_id"`
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// Validate rechaza puntajes fuera de rango.
func (s TraitScore) Validate() error {
	if s.TraitID == "" {
		return fmt.Errorf("%w: trait id is required", ErrInvalidInput)
	}
	if !inUnitRange(s.Score) {
		return fmt.Errorf("%w: trait %s score %v out of [0,1]", ErrInvalidInput, s.TraitID, s.Score)
	}
	if !inUnitRange(s.Confidence) {
		return fmt.Errorf("%w: trait %s confidence %v out of [0,1]", ErrInvalidInput, s.TraitID, s.Confidence)
	}
	return nil
}

func (s TraitScore) clone() TraitScore {
	out := s
	if s.Evidence != nil {
		out.Evidence = append([]string(nil), s.Evidence...)
	}
	return out
}

// TraitVector agrupa los puntajes de un sujeto en un momento dado.
// El mapa no implica orden; usar Top o IDs para un orden estable.
type TraitVector struct {
	Traits     map[string]TraitScore `json:"traits"`
	ComputedAt time.Time             `json:"computed_at"`
}

// NewTraitVector valida cada puntaje y devuelve el vector.
func NewTraitVector(traits map[string]TraitScore, at time.Time) (TraitVector, error) {
	v := TraitVector{Traits: make(map[string]TraitScore, len(traits)), ComputedAt: at}
	for id, ts := range traits {
		if ts.TraitID == "" {
			ts.TraitID = id
		}
		if ts.TraitID != id {
			return TraitVector{}, fmt.Errorf("%w: key %s holds trait %s", ErrInvalidInput, id, ts.TraitID)
		}
		if err := ts.Validate(); err != nil {
			return TraitVector{}, err
		}
		v.Traits[id] = ts.clone()
	}
	return v, nil
}

// Len devuelve la cantidad de rasgos.
func (v TraitVector) Len() int { return len(v.Traits) }

// IsEmpty indica que no hay evidencia de personalidad.
func (v TraitVector) IsEmpty() bool { return len(v.Traits) == 0 }

func (v TraitVector) Get(id string) (TraitScore, bool) {
	ts, ok := v.Traits[id]
	return ts, ok
}

// IDs devuelve los ids ordenados alfabeticamente.
func (v TraitVector) IDs() []string {
	ids := make([]string, 0, len(v.Traits))
	for id := range v.Traits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Top devuelve los n rasgos con mayor puntaje; empates por id.
func (v TraitVector) Top(n int) []TraitScore {
	all := make([]TraitScore, 0, len(v.Traits))
	for _, id := range v.IDs() {
		all = append(all, v.Traits[id])
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Clone devuelve una copia profunda.
func (v TraitVector) Clone() TraitVector {
	out := TraitVector{ComputedAt: v.ComputedAt}
	if v.Traits == nil {
		return out
	}
	out.Traits = make(map[string]TraitScore, len(v.Traits))
	for id, ts := range v.Traits {
		out.Traits[id] = ts.clone()
	}
	return out
}

// PairwiseEvidenceLimit acota la evidencia combinada en BlendWith.
const PairwiseEvidenceLimit = 10

// BlendWith mezcla este vector con otro. El peso propio se multiplica por decay y el
// del otro es 1-selfWeight. Rasgos presentes en un solo lado se copian tal cual.
// No es asociativo: mezclar de a pares no equivale a una mezcla N-aria.
func (v TraitVector) BlendWith(other TraitVector, selfWeight, decay float64) TraitVector {
	out := TraitVector{Traits: make(map[string]TraitScore), ComputedAt: v.ComputedAt}
	if other.ComputedAt.After(out.ComputedAt) {
		out.ComputedAt = other.ComputedAt
	}
	ws := selfWeight * decay
	wo := 1 - selfWeight

	for id, mine := range v.Traits {
		theirs, ok := other.Traits[id]
		if !ok {
			out.Traits[id] = mine.clone()
			continue
		}
		total := ws + wo
		if total <= 0 {
			out.Traits[id] = mine.clone()
			continue
		}
		evidence := append(append([]string(nil), mine.Evidence...), theirs.Evidence...)
		if len(evidence) > PairwiseEvidenceLimit {
			evidence = evidence[:PairwiseEvidenceLimit]
		}
		out.Traits[id] = TraitScore{
			TraitID:    id,
			Name:       mine.Name,
			Score:      (mine.Score*ws + theirs.Score*wo) / total,
			Confidence: (mine.Confidence*ws + theirs.Confidence*wo) / total,
			Evidence:   evidence,
		}
	}
	for id, theirs := range other.Traits {
		if _, ok := v.Traits[id]; !ok {
			out.Traits[id] = theirs.clone()
		}
	}
	return out
}

// Round3 redondea a tres decimales.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func inUnitRange(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}
