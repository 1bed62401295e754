package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pet-persona/internal/domain"
)

// PgSnapshotRepository implementa snapshot.Store sobre Postgres. Create toma un
// advisory lock por sujeto dentro de la transaccion; el indice unico parcial sobre
// is_current garantiza un solo snapshot actual.
type PgSnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewPgSnapshotRepository(pool *pgxpool.Pool) *PgSnapshotRepository {
	return &PgSnapshotRepository{pool: pool}
}

func (r *PgSnapshotRepository) Create(ctx context.Context, subjectID string, vector domain.TraitVector, evidence domain.EvidenceRecord) (domain.PersonalitySnapshot, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return domain.PersonalitySnapshot{}, fmt.Errorf("%w: subject id is required", domain.ErrInvalidInput)
	}
	snap := domain.PersonalitySnapshot{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Vector:    vector.Clone(),
		Evidence:  evidence.Clone(),
		IsCurrent: true,
		CreatedAt: time.Now().UTC(),
	}
	if snap.Vector.Traits == nil {
		snap.Vector.Traits = map[string]domain.TraitScore{}
	}
	vectorJSON, evidenceJSON, err := encodeSnapshot(snap)
	if err != nil {
		return domain.PersonalitySnapshot{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, subjectID); err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("lock subject snapshots: %w", err)
	}
	const latest = `
		SELECT COALESCE(MAX(version), 0)
		FROM personality_snapshots
		WHERE subject_id = $1
	`
	var version int
	if err := tx.QueryRow(ctx, latest, subjectID).Scan(&version); err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("select latest version: %w", err)
	}
	snap.Version = version + 1

	const supersede = `
		UPDATE personality_snapshots
		SET is_current = FALSE
		WHERE subject_id = $1 AND is_current
	`
	if _, err := tx.Exec(ctx, supersede, subjectID); err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("supersede snapshot: %w", err)
	}
	const insert = `
		INSERT INTO personality_snapshots (id, subject_id, version, vector, evidence, is_current, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
	`
	if _, err := tx.Exec(ctx, insert, snap.ID, snap.SubjectID, snap.Version, vectorJSON, evidenceJSON, snap.CreatedAt); err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

const snapshotColumns = `id, subject_id, version, vector, evidence, is_current, created_at`

func (r *PgSnapshotRepository) Current(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, bool, error) {
	query := `SELECT ` + snapshotColumns + ` FROM personality_snapshots WHERE subject_id = $1 AND is_current`
	return r.one(ctx, query, subjectID)
}

func (r *PgSnapshotRepository) Version(ctx context.Context, subjectID string, version int) (domain.PersonalitySnapshot, bool, error) {
	query := `SELECT ` + snapshotColumns + ` FROM personality_snapshots WHERE subject_id = $1 AND version = $2`
	return r.one(ctx, query, subjectID, version)
}

// History devuelve los snapshots del mas nuevo al mas viejo.
func (r *PgSnapshotRepository) History(ctx context.Context, subjectID string) ([]domain.PersonalitySnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM personality_snapshots WHERE subject_id = $1 ORDER BY version DESC`
	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out, err := collect(rows, scanSnapshot)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.PersonalitySnapshot{}
	}
	return out, nil
}

func (r *PgSnapshotRepository) one(ctx context.Context, query string, args ...interface{}) (domain.PersonalitySnapshot, bool, error) {
	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PersonalitySnapshot{}, false, nil
	}
	if err != nil {
		return domain.PersonalitySnapshot{}, false, fmt.Errorf("select snapshot: %w", err)
	}
	return snap, true, nil
}

func encodeSnapshot(snap domain.PersonalitySnapshot) ([]byte, []byte, error) {
	vectorJSON, err := json.Marshal(snap.Vector)
	if err != nil {
		return nil, nil, fmt.Errorf("encode vector: %w", err)
	}
	evidenceJSON, err := json.Marshal(snap.Evidence)
	if err != nil {
		return nil, nil, fmt.Errorf("encode evidence: %w", err)
	}
	return vectorJSON, evidenceJSON, nil
}

func scanSnapshot(row pgxRow) (domain.PersonalitySnapshot, error) {
	var s domain.PersonalitySnapshot
	var vectorJSON, evidenceJSON []byte
	if err := row.Scan(&s.ID, &s.SubjectID, &s.Version, &vectorJSON, &evidenceJSON, &s.IsCurrent, &s.CreatedAt); err != nil {
		return domain.PersonalitySnapshot{}, err
	}
	if err := json.Unmarshal(vectorJSON, &s.Vector); err != nil {
		return domain.PersonalitySnapshot{}, fmt.Errorf("decode vector: %w", err)
	}
	if len(evidenceJSON) > 0 {
		if err := json.Unmarshal(evidenceJSON, &s.Evidence); err != nil {
			return domain.PersonalitySnapshot{}, fmt.Errorf("decode evidence: %w", err)
		}
	}
	if s.Vector.Traits == nil {
		s.Vector.Traits = map[string]domain.TraitScore{}
	}
	return s, nil
}
