package domain

import "time"

// EvidenceRecord guarda las fuentes y pesos usados en una actualizacion.
type EvidenceRecord struct {
	Sources []string           `json:"sources"`
	Weights map[string]float64 `json:"weights"`
}

// Clone devuelve una copia profunda del registro.
func (r EvidenceRecord) Clone() EvidenceRecord {
	out := EvidenceRecord{}
	if r.Sources != nil {
		out.Sources = append([]string(nil), r.Sources...)
	}
	if r.Weights != nil {
		out.Weights = make(map[string]float64, len(r.Weights))
		for k, v := range r.Weights {
			out.Weights[k] = v
		}
	}
	return out
}

// PersonalitySnapshot es una version inmutable del vector de un sujeto.
type PersonalitySnapshot struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id"`
	Version   int            `json:"version"`
	Vector    TraitVector    `json:"vector"`
	Evidence  EvidenceRecord `json:"evidence"`
	IsCurrent bool           `json:"is_current"`
	CreatedAt time.Time      `json:"created_at"`
}

// Clone devuelve una copia profunda del snapshot.
func (s PersonalitySnapshot) Clone() PersonalitySnapshot {
	out := s
	out.Vector = s.Vector.Clone()
	out.Evidence = s.Evidence.Clone()
	return out
}

const (
	TraitChangeChanged = "changed"
	TraitChangeAdded   = "added"
	TraitChangeRemoved = "removed"
)

// TraitChange describe la diferencia de un rasgo entre dos versiones.
// Before/After son nil cuando el rasgo no existe en esa version.
type TraitChange struct {
	TraitID string   `json:"trait_id"`
	Status  string   `json:"status"`
	Before  *float64 `json:"before"`
	After   *float64 `json:"after"`
	Delta   float64  `json:"delta"`
}

// SnapshotDiff es el resultado de comparar dos versiones.
type SnapshotDiff struct {
	SubjectID       string        `json:"subject_id"`
	FromVersion     int           `json:"from_version"`
	ToVersion       int           `json:"to_version"`
	Changes         []TraitChange `json:"changes"`
	TotalTraitsFrom int           `json:"total_traits_from"`
	TotalTraitsTo   int           `json:"total_traits_to"`
}
