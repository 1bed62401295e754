package traits

import (
	"fmt"
	"strings"

	"pet-persona/internal/domain"
)

// Catalog enumera los rasgos validos. Se construye una vez y no se modifica.
type Catalog struct {
	order  []string
	byID   map[string]domain.TraitDefinition
	byKind map[domain.SubjectKind][]domain.TraitDefinition
}

// NewCatalog valida las definiciones y construye los indices.
func NewCatalog(defs []domain.TraitDefinition) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[string]domain.TraitDefinition, len(defs)),
		byKind: make(map[domain.SubjectKind][]domain.TraitDefinition),
	}
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("%w: trait definition without id", domain.ErrInvalidInput)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate trait id %q", domain.ErrInvalidInput, d.ID)
		}
		if strings.TrimSpace(d.Name) == "" {
			d.Name = d.ID
		}
		for _, k := range d.AppliesTo {
			if !k.Valid() {
				return nil, fmt.Errorf("%w: trait %q applies to unknown kind %q", domain.ErrInvalidInput, d.ID, k)
			}
		}
		d.AppliesTo = append([]domain.SubjectKind(nil), d.AppliesTo...)
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	for _, id := range c.order {
		d := c.byID[id]
		if d.Opposite != "" {
			if _, ok := c.byID[d.Opposite]; !ok {
				return nil, fmt.Errorf("%w: trait %q has unknown opposite %q", domain.ErrInvalidInput, id, d.Opposite)
			}
		}
		for _, k := range d.AppliesTo {
			c.byKind[k] = append(c.byKind[k], d)
		}
	}
	return c, nil
}

func (c *Catalog) Get(id string) (domain.TraitDefinition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// ForSubjectKind devuelve los rasgos aplicables a la especie, en orden de catalogo.
func (c *Catalog) ForSubjectKind(kind domain.SubjectKind) []domain.TraitDefinition {
	return append([]domain.TraitDefinition(nil), c.byKind[kind]...)
}

// Opposite devuelve el rasgo opuesto si existe.
func (c *Catalog) Opposite(id string) (string, bool) {
	d, ok := c.byID[id]
	if !ok || d.Opposite == "" {
		return "", false
	}
	return d.Opposite, true
}

func (c *Catalog) All() []domain.TraitDefinition {
	out := make([]domain.TraitDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Name devuelve el nombre visible o el id cuando el rasgo no existe.
func (c *Catalog) Name(id string) string {
	if d, ok := c.byID[id]; ok {
		return d.Name
	}
	return id
}
