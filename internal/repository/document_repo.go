package repository

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"pet-persona/internal/domain"
)

type DocumentRepository interface {
	AddDocument(ctx context.Context, doc domain.Document) (domain.Document, error)
	ListDocuments(ctx context.Context, subjectID string) ([]domain.Document, error)
}

// ContentHash es la huella blake2b-256 del contenido normalizado (espacios colapsados,
// minusculas). Dos historias con la misma huella se consideran la misma.
func ContentHash(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func prepareDocument(doc domain.Document) (domain.Document, error) {
	doc.SubjectID = strings.TrimSpace(doc.SubjectID)
	if doc.SubjectID == "" {
		return domain.Document{}, fmt.Errorf("%w: document subject is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return domain.Document{}, fmt.Errorf("%w: document content is required", domain.ErrInvalidInput)
	}
	if doc.Type == "" {
		doc.Type = domain.DocumentNote
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.ContentHash = ContentHash(doc.Content)
	return doc, nil
}

type PgDocumentRepository struct {
	pool *pgxpool.Pool
}

func NewPgDocumentRepository(pool *pgxpool.Pool) *PgDocumentRepository {
	return &PgDocumentRepository{pool: pool}
}

// AddDocument inserta el documento; si ya existe uno con la misma huella devuelve el existente.
func (r *PgDocumentRepository) AddDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	doc, err := prepareDocument(doc)
	if err != nil {
		return domain.Document{}, err
	}
	const insert = `
		INSERT INTO documents (id, subject_id, type, title, content, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subject_id, content_hash) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, insert,
		doc.ID,
		doc.SubjectID,
		string(doc.Type),
		doc.Title,
		doc.Content,
		doc.ContentHash,
		doc.CreatedAt,
	)
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return doc, nil
	}

	const existing = `
		SELECT id, subject_id, type, title, content, content_hash, created_at
		FROM documents
		WHERE subject_id = $1 AND content_hash = $2
	`
	found, err := scanDocument(r.pool.QueryRow(ctx, existing, doc.SubjectID, doc.ContentHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %s vanished after conflict: %w", doc.ContentHash, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("select duplicate document: %w", err)
	}
	return found, nil
}

func (r *PgDocumentRepository) ListDocuments(ctx context.Context, subjectID string) ([]domain.Document, error) {
	const query = `
		SELECT id, subject_id, type, title, content, content_hash, created_at
		FROM documents
		WHERE subject_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collect(rows, scanDocument)
}

func scanDocument(row pgxRow) (domain.Document, error) {
	var d domain.Document
	var docType string
	if err := row.Scan(&d.ID, &d.SubjectID, &docType, &d.Title, &d.Content, &d.ContentHash, &d.CreatedAt); err != nil {
		return domain.Document{}, err
	}
	d.Type = domain.DocumentType(docType)
	return d, nil
}

// MemoryDocumentRepository aplica la misma deduplicacion por huella en memoria.
type MemoryDocumentRepository struct {
	mu     sync.RWMutex
	docs   map[string][]domain.Document
	hashes map[string]domain.Document
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{
		docs:   make(map[string][]domain.Document),
		hashes: make(map[string]domain.Document),
	}
}

func (r *MemoryDocumentRepository) AddDocument(_ context.Context, doc domain.Document) (domain.Document, error) {
	doc, err := prepareDocument(doc)
	if err != nil {
		return domain.Document{}, err
	}
	key := doc.SubjectID + "\x00" + doc.ContentHash
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.hashes[key]; ok {
		return existing, nil
	}
	r.hashes[key] = doc
	r.docs[doc.SubjectID] = append(r.docs[doc.SubjectID], doc)
	return doc, nil
}

func (r *MemoryDocumentRepository) ListDocuments(_ context.Context, subjectID string) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Document{}, r.docs[subjectID]...), nil
}
