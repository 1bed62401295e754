package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pet-persona/internal/domain"
)

// BaselineKey normaliza especie y raza. Raza vacia es la base de la especie.
func BaselineKey(kind domain.SubjectKind, breed string) string {
	return string(kind) + ":" + strings.ToLower(strings.TrimSpace(breed))
}

// PgBaselineRepository guarda los vectores base ya puntuados por especie y raza.
type PgBaselineRepository struct {
	pool *pgxpool.Pool
}

func NewPgBaselineRepository(pool *pgxpool.Pool) *PgBaselineRepository {
	return &PgBaselineRepository{pool: pool}
}

func (r *PgBaselineRepository) Baseline(ctx context.Context, kind domain.SubjectKind, breed string) (domain.TraitVector, bool, error) {
	const query = `
		SELECT vector
		FROM breed_baselines
		WHERE kind = $1 AND breed = $2
	`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, string(kind), strings.ToLower(strings.TrimSpace(breed))).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TraitVector{}, false, nil
	}
	if err != nil {
		return domain.TraitVector{}, false, fmt.Errorf("select baseline: %w", err)
	}
	var v domain.TraitVector
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.TraitVector{}, false, fmt.Errorf("decode baseline: %w", err)
	}
	return v, true, nil
}

func (r *PgBaselineRepository) SaveBaseline(ctx context.Context, kind domain.SubjectKind, breed string, vector domain.TraitVector) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	const query = `
		INSERT INTO breed_baselines (kind, breed, vector, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, breed)
		DO UPDATE SET vector = EXCLUDED.vector, updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query, string(kind), strings.ToLower(strings.TrimSpace(breed)), raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

// MemoryBaselineRepository guarda vectores base en memoria.
type MemoryBaselineRepository struct {
	mu      sync.RWMutex
	vectors map[string]domain.TraitVector
}

func NewMemoryBaselineRepository() *MemoryBaselineRepository {
	return &MemoryBaselineRepository{vectors: make(map[string]domain.TraitVector)}
}

func (r *MemoryBaselineRepository) Baseline(_ context.Context, kind domain.SubjectKind, breed string) (domain.TraitVector, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vectors[BaselineKey(kind, breed)]
	if !ok {
		return domain.TraitVector{}, false, nil
	}
	return v.Clone(), true, nil
}

func (r *MemoryBaselineRepository) SaveBaseline(_ context.Context, kind domain.SubjectKind, breed string, vector domain.TraitVector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vectors[BaselineKey(kind, breed)] = vector.Clone()
	return nil
}
