package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pet-persona/internal/domain"
)

// Index es el indice de evidencia de un sujeto.
type Index interface {
	Add(ctx context.Context, id, text string, metadata map[string]string) error
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.SearchResult, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	Count() int
}

type entry struct {
	id       string
	text     string
	metadata map[string]string
	vector   []float32
	seq      uint64
	dead     bool
}

// MemoryIndex es un indice plano en memoria. Agregar es O(1) amortizado y borrar
// deja una lapida que se compacta cuando la mitad de las entradas estan muertas.
type MemoryIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
	live    int
	nextSeq uint64
}

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, byID: make(map[string]int)}
}

func validateAdd(id, text string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: document %s has no content", domain.ErrInvalidInput, id)
	}
	return nil
}

// Add indexa el texto. Un id existente se reemplaza y pasa al final del orden de insercion.
func (m *MemoryIndex) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	if m == nil || m.embedder == nil {
		return ErrEmbedderNotConfigured
	}
	if err := validateAdd(id, text); err != nil {
		return err
	}
	// el embedding se calcula fuera del lock
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pos, ok := m.byID[id]; ok {
		m.entries[pos].dead = true
		m.live--
	}
	m.entries = append(m.entries, entry{
		id:       id,
		text:     text,
		metadata: copyMetadata(metadata),
		vector:   vec,
		seq:      m.nextSeq,
	})
	m.nextSeq++
	m.byID[id] = len(m.entries) - 1
	m.live++
	m.maybeCompact()
	return nil
}

// Search devuelve hasta k resultados por similitud coseno; empates por orden de insercion.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if m == nil || m.embedder == nil {
		return nil, ErrEmbedderNotConfigured
	}
	if k <= 0 || m.Count() == 0 || strings.TrimSpace(query) == "" {
		return []domain.SearchResult{}, nil
	}
	qv, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	type hit struct {
		e     *entry
		score float64
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]hit, 0, m.live)
	for i := range m.entries {
		e := &m.entries[i]
		if e.dead || !matchesFilter(e.metadata, filter) {
			continue
		}
		hits = append(hits, hit{e: e, score: cosine(qv, e.vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].e.seq < hits[j].e.seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.SearchResult{
			ID:       h.e.id,
			Content:  h.e.text,
			Score:    h.score,
			Metadata: copyMetadata(h.e.metadata),
		})
	}
	return out, nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	m.entries[pos].dead = true
	delete(m.byID, id)
	m.live--
	m.maybeCompact()
	return true, nil
}

func (m *MemoryIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.byID = make(map[string]int)
	m.live = 0
	return nil
}

func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

// maybeCompact requiere el lock de escritura.
func (m *MemoryIndex) maybeCompact() {
	dead := len(m.entries) - m.live
	if dead == 0 || dead*2 < len(m.entries) {
		return
	}
	kept := make([]entry, 0, m.live)
	for _, e := range m.entries {
		if !e.dead {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	for i, e := range m.entries {
		m.byID[e.id] = i
	}
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// LoadDocuments indexa los documentos de un sujeto con metadata de tipo y titulo.
func LoadDocuments(ctx context.Context, idx Index, docs []domain.Document) (int, error) {
	loaded := 0
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		meta := map[string]string{
			"type":       string(d.Type),
			"title":      d.Title,
			"subject_id": d.SubjectID,
		}
		if err := idx.Add(ctx, d.ID, d.Content, meta); err != nil {
			return loaded, fmt.Errorf("index document %s: %w", d.ID, err)
		}
		loaded++
	}
	return loaded, nil
}
