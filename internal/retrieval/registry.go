package retrieval

import (
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Factory crea el indice de un sujeto.
type Factory func(subjectID string) (Index, error)

// MemoryFactory crea un MemoryIndex por sujeto.
func MemoryFactory(embedder Embedder) Factory {
	return func(string) (Index, error) { return NewMemoryIndex(embedder), nil }
}

// ChromemFactory crea una coleccion por sujeto dentro de una base chromem compartida.
func ChromemFactory(db *chromem.DB, embedder Embedder) Factory {
	return func(subjectID string) (Index, error) {
		return NewChromemIndex(db, "subject_"+subjectID, embedder)
	}
}

// Registry mantiene un indice por sujeto, creado bajo demanda. La fabrica corre fuera
// del lock: un sujeto lento de crear solo bloquea a quienes piden ese mismo sujeto.
type Registry struct {
	factory Factory

	mu    sync.Mutex
	slots map[string]*slot
}

// slot es la creacion, en curso o terminada, del indice de un sujeto.
type slot struct {
	ready chan struct{}
	idx   Index
	err   error
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, slots: make(map[string]*slot)}
}

// For devuelve el indice del sujeto, creandolo si hace falta. Si la creacion falla el
// sujeto queda libre para reintentar.
func (r *Registry) For(subjectID string) (Index, error) {
	r.mu.Lock()
	s, ok := r.slots[subjectID]
	if !ok {
		s = &slot{ready: make(chan struct{})}
		r.slots[subjectID] = s
	}
	r.mu.Unlock()

	if ok {
		<-s.ready
		return s.idx, s.err
	}

	idx, err := r.factory(subjectID)
	if err != nil {
		s.err = fmt.Errorf("create index for %s: %w", subjectID, err)
		r.mu.Lock()
		if r.slots[subjectID] == s {
			delete(r.slots, subjectID)
		}
		r.mu.Unlock()
	} else {
		s.idx = idx
	}
	close(s.ready)
	return s.idx, s.err
}

// Lookup devuelve el indice solo si ya existe.
func (r *Registry) Lookup(subjectID string) (Index, bool) {
	r.mu.Lock()
	s, ok := r.slots[subjectID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-s.ready:
		return s.idx, s.err == nil
	default:
		return nil, false
	}
}

func (r *Registry) Drop(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, subjectID)
}
