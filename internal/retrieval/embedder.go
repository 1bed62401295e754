package retrieval

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/dgraph-io/ristretto"
)

// DefaultDimensions es el tamano del vector del HashEmbedder.
const DefaultDimensions = 256

var ErrEmbedderNotConfigured = errors.New("embedder not configured")

// Embedder convierte texto en un vector denso.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashEmbedder es un embedder determinista de bolsa de palabras con feature hashing.
// No necesita red ni modelo; sirve para pruebas y modo offline.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Dimensions() int { return e.dims }

// Embed devuelve un vector normalizado. Un texto sin palabras se hashea completo
// para no producir el vector nulo; solo el texto en blanco da ceros.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dims)
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return vec, nil
	}
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(tokens) == 0 {
		tokens = []string{lower}
	}
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		idx := int(sum % uint32(e.dims))
		if sum&(1<<31) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	normalize(vec)
	return vec, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// CachedEmbedder memoiza embeddings por texto con ristretto.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder envuelve inner. maxCost se mide en bytes de vector.
func NewCachedEmbedder(inner Embedder, maxCost int64) (*CachedEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderNotConfigured
	}
	if maxCost <= 0 {
		maxCost = 1 << 24
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, append([]float32(nil), vec...), int64(len(vec)*4))
	return vec, nil
}

// Wait bloquea hasta que las escrituras pendientes del cache sean visibles.
func (c *CachedEmbedder) Wait() { c.cache.Wait() }

// Close libera las goroutines del cache.
func (c *CachedEmbedder) Close() { c.cache.Close() }

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		na += float64(x) * float64(x)
	}
	for _, x := range b {
		nb += float64(x) * float64(x)
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}
