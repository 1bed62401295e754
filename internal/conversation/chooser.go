package conversation

import (
	"encoding/binary"
	"hash/fnv"
)

// chooser es una secuencia determinista derivada de una semilla FNV-1a.
// La misma semilla produce siempre las mismas elecciones.
type chooser struct {
	seed uint64
	n    uint64
}

func newChooser(parts ...string) *chooser {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return &chooser{seed: h.Sum64()}
}

func (c *chooser) next() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], c.seed)
	binary.LittleEndian.PutUint64(buf[8:], c.n)
	c.n++
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func (c *chooser) pick(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[c.next()%uint64(len(items))]
}

// roll devuelve un valor en [0,1).
func (c *chooser) roll() float64 {
	return float64(c.next()>>11) / float64(1<<53)
}

// sample elige hasta k elementos distintos conservando el orden de eleccion.
func (c *chooser) sample(items []string, k int) []string {
	pool := append([]string(nil), items...)
	if k > len(pool) {
		k = len(pool)
	}
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		j := i + int(c.next()%uint64(len(pool)-i))
		pool[i], pool[j] = pool[j], pool[i]
		out = append(out, pool[i])
	}
	return out
}
