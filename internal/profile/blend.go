package profile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"pet-persona/internal/domain"
)

// MaxBlendEvidence acota la evidencia combinada por rasgo.
const MaxBlendEvidence = 5

// Component es una fuente ponderada para la mezcla.
type Component struct {
	Name   string
	Vector domain.TraitVector
	Weight float64
}

// Blend mezcla N componentes de una vez. Los pesos se normalizan por su suma y cada
// rasgo se promedia solo sobre los componentes que lo mencionan.
func Blend(components []Component, at time.Time) (domain.TraitVector, error) {
	out := domain.TraitVector{Traits: make(map[string]domain.TraitScore), ComputedAt: at}

	var total float64
	ids := make(map[string]struct{})
	for _, c := range components {
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return domain.TraitVector{}, fmt.Errorf("%w: component %q has weight %v", domain.ErrInvalidInput, c.Name, c.Weight)
		}
		total += c.Weight
		for id := range c.Vector.Traits {
			ids[id] = struct{}{}
		}
	}
	if total == 0 {
		return out, nil
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		var (
			score, confidence, contrib float64
			name                       string
			evidence                   []string
		)
		for _, c := range components {
			ts, ok := c.Vector.Traits[id]
			if !ok {
				continue
			}
			w := c.Weight / total
			score += ts.Score * w
			confidence += ts.Confidence * w
			contrib += w
			if name == "" {
				name = ts.Name
			}
			evidence = append(evidence, ts.Evidence...)
		}
		if contrib <= 0 {
			continue
		}
		out.Traits[id] = domain.TraitScore{
			TraitID:    id,
			Name:       name,
			Score:      domain.Round3(score / contrib),
			Confidence: domain.Round3(confidence / contrib),
			Evidence:   capEvidence(evidence, MaxBlendEvidence),
		}
	}
	return out, nil
}

func capEvidence(items []string, limit int) []string {
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

// DecayPolicy define el decaimiento exponencial del snapshot historico.
type DecayPolicy struct {
	HalfLifeDays float64
	Floor        float64
}

// DefaultDecay usa vida media de 30 dias y piso de 0.1.
var DefaultDecay = DecayPolicy{HalfLifeDays: 30, Floor: 0.1}

// Validate exige vida media positiva y piso en (0,1].
func (p DecayPolicy) Validate() error {
	if p.HalfLifeDays <= 0 || math.IsNaN(p.HalfLifeDays) {
		return fmt.Errorf("%w: half-life must be positive", domain.ErrInvalidInput)
	}
	if p.Floor <= 0 || p.Floor > 1 || math.IsNaN(p.Floor) {
		return fmt.Errorf("%w: decay floor must be in (0,1]", domain.ErrInvalidInput)
	}
	return nil
}

// Factor devuelve max(floor, 0.5^(edad/vida media)). Una fecha futura cuenta como edad cero.
func (p DecayPolicy) Factor(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt).Hours() / 24
	if age < 0 {
		age = 0
	}
	return math.Max(p.Floor, math.Pow(0.5, age/p.HalfLifeDays))
}
