package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"pet-persona/internal/domain"
	"pet-persona/internal/retrieval"
)

const countTimeout = 2 * time.Second

// PgVectorIndex es el indice de evidencia de un sujeto sobre pgvector. La distancia
// coseno se traduce a similitud 1 - d; los empates se resuelven por seq de insercion.
type PgVectorIndex struct {
	pool      *pgxpool.Pool
	subjectID string
	embedder  retrieval.Embedder
}

func NewPgVectorIndex(pool *pgxpool.Pool, subjectID string, embedder retrieval.Embedder) (*PgVectorIndex, error) {
	if embedder == nil {
		return nil, retrieval.ErrEmbedderNotConfigured
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, fmt.Errorf("%w: subject id is required", domain.ErrInvalidInput)
	}
	return &PgVectorIndex{pool: pool, subjectID: subjectID, embedder: embedder}, nil
}

// PgVectorFactory crea un PgVectorIndex por sujeto sobre un pool compartido.
func PgVectorFactory(pool *pgxpool.Pool, embedder retrieval.Embedder) retrieval.Factory {
	return func(subjectID string) (retrieval.Index, error) {
		return NewPgVectorIndex(pool, subjectID, embedder)
	}
}

// Add reemplaza el documento si el id ya existe; el reemplazo recibe un seq nuevo.
func (p *PgVectorIndex) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: document %s has no content", domain.ErrInvalidInput, id)
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO evidence_embeddings (subject_id, id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject_id, id)
		DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			seq = nextval('evidence_embeddings_seq_seq')
	`
	if _, err := p.pool.Exec(ctx, query, p.subjectID, id, text, meta, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (p *PgVectorIndex) Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []domain.SearchResult{}, nil
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	meta, err := encodeMetadata(filter)
	if err != nil {
		return nil, err
	}
	const sql = `
		SELECT id, content, metadata, 1 - (embedding <=> $2) AS similarity
		FROM evidence_embeddings
		WHERE subject_id = $1 AND metadata @> $3
		ORDER BY embedding <=> $2, seq
		LIMIT $4
	`
	rows, err := p.pool.Query(ctx, sql, p.subjectID, pgvector.NewVector(vec), meta, k)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	results, err := collect(rows, scanSearchResult)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results, nil
}

func (p *PgVectorIndex) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM evidence_embeddings WHERE subject_id = $1 AND id = $2`, p.subjectID, id)
	if err != nil {
		return false, fmt.Errorf("delete embedding: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PgVectorIndex) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM evidence_embeddings WHERE subject_id = $1`, p.subjectID); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}
	return nil
}

// Count consulta la tabla con un timeout propio; un error cuenta como indice vacio.
func (p *PgVectorIndex) Count() int {
	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evidence_embeddings WHERE subject_id = $1`, p.subjectID).Scan(&n); err != nil {
		return 0
	}
	return n
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return raw, nil
}

func scanSearchResult(row pgxRow) (domain.SearchResult, error) {
	var r domain.SearchResult
	var meta []byte
	if err := row.Scan(&r.ID, &r.Content, &meta, &r.Score); err != nil {
		return domain.SearchResult{}, err
	}
	r.Metadata = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return domain.SearchResult{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return r, nil
}
