package traits

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pet-persona/internal/domain"
)

//go:embed data/catalog.yaml data/lexicon.yaml
var defaultData embed.FS

type catalogFile struct {
	Traits []domain.TraitDefinition `yaml:"traits"`
}

type lexiconFile struct {
	Mappings map[string]Mapping `yaml:"mappings"`
}

// ParseCatalog lee un catalogo en YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Traits)
}

// ParseLexicon lee un lexicon en YAML.
func ParseLexicon(raw []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return NewLexicon(f.Mappings)
}

// DefaultCatalog carga el catalogo embebido.
func DefaultCatalog() (*Catalog, error) {
	raw, err := defaultData.ReadFile("data/catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// DefaultLexicon carga el lexicon embebido.
func DefaultLexicon() (*Lexicon, error) {
	raw, err := defaultData.ReadFile("data/lexicon.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded lexicon: %w", err)
	}
	return ParseLexicon(raw)
}

// Load devuelve catalogo y lexicon desde archivos, usando los embebidos cuando la ruta es vacia.
func Load(catalogPath, lexiconPath string) (*Catalog, *Lexicon, error) {
	var (
		catalog *Catalog
		lexicon *Lexicon
		err     error
	)
	if catalogPath == "" {
		catalog, err = DefaultCatalog()
	} else {
		catalog, err = loadFile(catalogPath, ParseCatalog)
	}
	if err != nil {
		return nil, nil, err
	}
	if lexiconPath == "" {
		lexicon, err = DefaultLexicon()
	} else {
		lexicon, err = loadFile(lexiconPath, ParseLexicon)
	}
	if err != nil {
		return nil, nil, err
	}
	for _, id := range lexicon.TraitIDs() {
		if _, ok := catalog.Get(id); !ok {
			return nil, nil, fmt.Errorf("%w: lexicon trait %q missing from catalog", domain.ErrInvalidInput, id)
		}
	}
	return catalog, lexicon, nil
}

func loadFile[T any](path string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	return parse(raw)
}
