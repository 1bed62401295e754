package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"pet-persona/internal/domain"
)

// seqKey guarda el orden de insercion dentro de la metadata de chromem.
const seqKey = "_seq"

// ChromemIndex implementa Index sobre una coleccion de chromem-go.
// Los embeddings los calcula el Embedder propio, nunca la funcion de la coleccion.
type ChromemIndex struct {
	embedder Embedder
	col      *chromem.Collection

	mu      sync.RWMutex
	seqs    map[string]uint64
	nextSeq uint64
}

// NewChromemIndex obtiene o crea la coleccion name dentro de db.
func NewChromemIndex(db *chromem.DB, name string, embedder Embedder) (*ChromemIndex, error) {
	if embedder == nil {
		return nil, ErrEmbedderNotConfigured
	}
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{embedder: embedder, col: col, seqs: make(map[string]uint64)}, nil
}

func (c *ChromemIndex) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	if err := validateAdd(id, text); err != nil {
		return err
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.nextSeq
	c.nextSeq++
	meta := copyMetadata(metadata)
	meta[seqKey] = strconv.FormatUint(seq, 10)

	doc := chromem.Document{ID: id, Content: text, Embedding: vec, Metadata: meta}
	if err := c.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	c.seqs[id] = seq
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if k <= 0 || c.col.Count() == 0 || strings.TrimSpace(query) == "" {
		return []domain.SearchResult{}, nil
	}
	qv, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	// conteo y consulta bajo el mismo lock que Delete; chromem rechaza n > Count
	c.mu.RLock()
	n := c.col.Count()
	if n == 0 {
		c.mu.RUnlock()
		return []domain.SearchResult{}, nil
	}
	// se piden todos para desempatar por secuencia antes de cortar en k
	results, err := c.col.QueryEmbedding(ctx, qv, n, where, nil)
	c.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return seqOf(results[i].Metadata) < seqOf(results[j].Metadata)
	})
	if len(results) > k {
		results = results[:k]
	}
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		meta := copyMetadata(r.Metadata)
		delete(meta, seqKey)
		out = append(out, domain.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: meta,
		})
	}
	return out, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seqs[id]; !ok {
		return false, nil
	}
	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	delete(c.seqs, id)
	return true, nil
}

func (c *ChromemIndex) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seqs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(c.seqs))
	for id := range c.seqs {
		ids = append(ids, id)
	}
	if err := c.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	c.seqs = make(map[string]uint64)
	return nil
}

func (c *ChromemIndex) Count() int { return c.col.Count() }

func seqOf(meta map[string]string) uint64 {
	n, err := strconv.ParseUint(meta[seqKey], 10, 64)
	if err != nil {
		return ^uint64(0)
	}
	return n
}
