package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pet-persona/internal/domain"
)

type SubjectRepository interface {
	CreateSubject(ctx context.Context, subject domain.Subject) (domain.Subject, error)
	GetSubject(ctx context.Context, id string) (domain.Subject, error)
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
}

// prepareSubject valida y completa id y fecha.
func prepareSubject(subject domain.Subject) (domain.Subject, error) {
	subject.Name = strings.TrimSpace(subject.Name)
	subject.Breed = strings.TrimSpace(subject.Breed)
	if err := subject.Validate(); err != nil {
		return domain.Subject{}, err
	}
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	return subject, nil
}

type PgSubjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgSubjectRepository(pool *pgxpool.Pool) *PgSubjectRepository {
	return &PgSubjectRepository{pool: pool}
}

func (r *PgSubjectRepository) CreateSubject(ctx context.Context, subject domain.Subject) (domain.Subject, error) {
	subject, err := prepareSubject(subject)
	if err != nil {
		return domain.Subject{}, err
	}
	const query = `
		INSERT INTO subjects (id, name, kind, breed, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, subject.ID, subject.Name, string(subject.Kind), subject.Breed, subject.CreatedAt); err != nil {
		return domain.Subject{}, fmt.Errorf("insert subject: %w", err)
	}
	return subject, nil
}

func (r *PgSubjectRepository) GetSubject(ctx context.Context, id string) (domain.Subject, error) {
	const query = `
		SELECT id, name, kind, breed, created_at
		FROM subjects
		WHERE id = $1
	`
	s, err := scanSubject(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subject{}, fmt.Errorf("subject %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("select subject: %w", err)
	}
	return s, nil
}

func (r *PgSubjectRepository) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	const query = `
		SELECT id, name, kind, breed, created_at
		FROM subjects
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return collect(rows, scanSubject)
}

func scanSubject(row pgxRow) (domain.Subject, error) {
	var s domain.Subject
	var kind string
	if err := row.Scan(&s.ID, &s.Name, &kind, &s.Breed, &s.CreatedAt); err != nil {
		return domain.Subject{}, err
	}
	s.Kind = domain.SubjectKind(kind)
	return s, nil
}

// MemorySubjectRepository guarda sujetos en memoria, para la CLI y los tests.
type MemorySubjectRepository struct {
	mu       sync.RWMutex
	subjects map[string]domain.Subject
	order    []string
}

func NewMemorySubjectRepository() *MemorySubjectRepository {
	return &MemorySubjectRepository{subjects: make(map[string]domain.Subject)}
}

func (r *MemorySubjectRepository) CreateSubject(_ context.Context, subject domain.Subject) (domain.Subject, error) {
	subject, err := prepareSubject(subject)
	if err != nil {
		return domain.Subject{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[subject.ID]; ok {
		return domain.Subject{}, fmt.Errorf("%w: subject %s already exists", domain.ErrInvalidInput, subject.ID)
	}
	r.subjects[subject.ID] = subject
	r.order = append(r.order, subject.ID)
	return subject, nil
}

func (r *MemorySubjectRepository) GetSubject(_ context.Context, id string) (domain.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subjects[id]
	if !ok {
		return domain.Subject{}, fmt.Errorf("subject %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (r *MemorySubjectRepository) ListSubjects(context.Context) ([]domain.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Subject, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.subjects[id])
	}
	return out, nil
}
