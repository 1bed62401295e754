package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pet-persona/internal/domain"
)

// Store versiona snapshots por sujeto. Create debe ser atomico por sujeto:
// leer el actual, marcarlo como no actual e insertar el nuevo en una sola unidad.
type Store interface {
	Create(ctx context.Context, subjectID string, vector domain.TraitVector, evidence domain.EvidenceRecord) (domain.PersonalitySnapshot, error)
	Current(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, bool, error)
	History(ctx context.Context, subjectID string) ([]domain.PersonalitySnapshot, error)
	Version(ctx context.Context, subjectID string, version int) (domain.PersonalitySnapshot, bool, error)
}

// MemoryStore guarda snapshots en memoria con un mutex por sujeto.
type MemoryStore struct {
	mu       sync.Mutex
	subjects map[string]*subjectHistory
	now      func() time.Time
}

type subjectHistory struct {
	mu        sync.Mutex
	snapshots []domain.PersonalitySnapshot // orden de version ascendente
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]*subjectHistory),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) history(subjectID string, create bool) *subjectHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.subjects[subjectID]
	if !ok && create {
		h = &subjectHistory{}
		s.subjects[subjectID] = h
	}
	return h
}

func (s *MemoryStore) Create(_ context.Context, subjectID string, vector domain.TraitVector, evidence domain.EvidenceRecord) (domain.PersonalitySnapshot, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return domain.PersonalitySnapshot{}, fmt.Errorf("%w: subject id is required", domain.ErrInvalidInput)
	}
	h := s.history(subjectID, true)
	h.mu.Lock()
	defer h.mu.Unlock()

	version := 1
	if n := len(h.snapshots); n > 0 {
		version = h.snapshots[n-1].Version + 1
		for i := range h.snapshots {
			h.snapshots[i].IsCurrent = false
		}
	}
	snap := domain.PersonalitySnapshot{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Version:   version,
		Vector:    vector.Clone(),
		Evidence:  evidence.Clone(),
		IsCurrent: true,
		CreatedAt: s.now(),
	}
	if snap.Vector.Traits == nil {
		snap.Vector.Traits = map[string]domain.TraitScore{}
	}
	h.snapshots = append(h.snapshots, snap)
	return snap.Clone(), nil
}

func (s *MemoryStore) Current(_ context.Context, subjectID string) (domain.PersonalitySnapshot, bool, error) {
	h := s.history(subjectID, false)
	if h == nil {
		return domain.PersonalitySnapshot{}, false, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.snapshots) - 1; i >= 0; i-- {
		if h.snapshots[i].IsCurrent {
			return h.snapshots[i].Clone(), true, nil
		}
	}
	return domain.PersonalitySnapshot{}, false, nil
}

// History devuelve los snapshots del mas nuevo al mas viejo.
func (s *MemoryStore) History(_ context.Context, subjectID string) ([]domain.PersonalitySnapshot, error) {
	h := s.history(subjectID, false)
	if h == nil {
		return []domain.PersonalitySnapshot{}, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.PersonalitySnapshot, 0, len(h.snapshots))
	for i := len(h.snapshots) - 1; i >= 0; i-- {
		out = append(out, h.snapshots[i].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Version(_ context.Context, subjectID string, version int) (domain.PersonalitySnapshot, bool, error) {
	h := s.history(subjectID, false)
	if h == nil || version < 1 {
		return domain.PersonalitySnapshot{}, false, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if version > len(h.snapshots) {
		return domain.PersonalitySnapshot{}, false, nil
	}
	return h.snapshots[version-1].Clone(), true, nil
}
