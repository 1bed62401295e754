package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"pet-persona/internal/domain"
)

// SignificanceThreshold descarta cambios menores en Compare.
const SignificanceThreshold = 0.05

var ErrManagerNotConfigured = errors.New("snapshot manager not configured")

// Manager expone las operaciones de snapshots sobre cualquier Store.
type Manager struct {
	store  Store
	logger *zap.Logger
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Store devuelve el almacen subyacente.
func (m *Manager) Store() Store { return m.store }

func (m *Manager) Create(ctx context.Context, subjectID string, vector domain.TraitVector, evidence domain.EvidenceRecord) (domain.PersonalitySnapshot, error) {
	if m == nil || m.store == nil {
		return domain.PersonalitySnapshot{}, ErrManagerNotConfigured
	}
	for _, id := range vector.IDs() {
		if err := vector.Traits[id].Validate(); err != nil {
			return domain.PersonalitySnapshot{}, err
		}
	}
	snap, err := m.store.Create(ctx, subjectID, vector, evidence)
	if err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	m.logger.Info("snapshot created",
		zap.String("subject_id", subjectID),
		zap.Int("version", snap.Version),
		zap.Int("traits", snap.Vector.Len()),
	)
	return snap, nil
}

// Current implementa el contrato que consume el updater.
func (m *Manager) Current(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, bool, error) {
	if m == nil || m.store == nil {
		return domain.PersonalitySnapshot{}, false, ErrManagerNotConfigured
	}
	return m.store.Current(ctx, subjectID)
}

// GetCurrent devuelve domain.ErrNotFound si el sujeto no tiene snapshots.
func (m *Manager) GetCurrent(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, error) {
	snap, ok, err := m.Current(ctx, subjectID)
	if err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("get current snapshot: %w", err)
	}
	if !ok {
		return domain.PersonalitySnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

// GetHistory devuelve los snapshots del mas nuevo al mas viejo.
func (m *Manager) GetHistory(ctx context.Context, subjectID string) ([]domain.PersonalitySnapshot, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotConfigured
	}
	history, err := m.store.History(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot history: %w", err)
	}
	return history, nil
}

// Compare reporta cada rasgo presente en alguna de las dos versiones. Los rasgos
// presentes en ambas con |delta| menor al umbral se omiten.
func (m *Manager) Compare(ctx context.Context, subjectID string, v1, v2 int) (domain.SnapshotDiff, error) {
	if m == nil || m.store == nil {
		return domain.SnapshotDiff{}, ErrManagerNotConfigured
	}
	from, ok, err := m.store.Version(ctx, subjectID, v1)
	if err != nil {
		return domain.SnapshotDiff{}, fmt.Errorf("get version %d: %w", v1, err)
	}
	if !ok {
		return domain.SnapshotDiff{}, fmt.Errorf("version %d: %w", v1, domain.ErrNotFound)
	}
	to, ok, err := m.store.Version(ctx, subjectID, v2)
	if err != nil {
		return domain.SnapshotDiff{}, fmt.Errorf("get version %d: %w", v2, err)
	}
	if !ok {
		return domain.SnapshotDiff{}, fmt.Errorf("version %d: %w", v2, domain.ErrNotFound)
	}
	return Diff(from, to), nil
}

// Diff compara dos snapshots ya cargados.
func Diff(from, to domain.PersonalitySnapshot) domain.SnapshotDiff {
	diff := domain.SnapshotDiff{
		SubjectID:       to.SubjectID,
		FromVersion:     from.Version,
		ToVersion:       to.Version,
		Changes:         []domain.TraitChange{},
		TotalTraitsFrom: from.Vector.Len(),
		TotalTraitsTo:   to.Vector.Len(),
	}

	ids := make(map[string]struct{})
	for id := range from.Vector.Traits {
		ids[id] = struct{}{}
	}
	for id := range to.Vector.Traits {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		before, hadBefore := from.Vector.Traits[id]
		after, hasAfter := to.Vector.Traits[id]
		change := domain.TraitChange{TraitID: id}
		switch {
		case hadBefore && hasAfter:
			delta := after.Score - before.Score
			if math.Abs(delta) < SignificanceThreshold {
				continue
			}
			change.Status = domain.TraitChangeChanged
			change.Before = floatPtr(before.Score)
			change.After = floatPtr(after.Score)
			change.Delta = domain.Round3(delta)
		case hadBefore:
			change.Status = domain.TraitChangeRemoved
			change.Before = floatPtr(before.Score)
			change.Delta = domain.Round3(-before.Score)
		default:
			change.Status = domain.TraitChangeAdded
			change.After = floatPtr(after.Score)
			change.Delta = domain.Round3(after.Score)
		}
		diff.Changes = append(diff.Changes, change)
	}
	return diff
}

func floatPtr(f float64) *float64 { return &f }
