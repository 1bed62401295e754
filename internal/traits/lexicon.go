package traits

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"pet-persona/internal/domain"
)

// Mapping es la entrada del lexicon para un rasgo.
type Mapping struct {
	Keywords []string `yaml:"keywords"`
	Phrases  []string `yaml:"phrases"`
	Weight   float64  `yaml:"weight"`
}

// Match es una coincidencia de palabra o frase con su peso de lexicon.
type Match struct {
	TraitID string
	Term    string
	Weight  float64
	// Keyword marca una palabra clave compuesta que se busca como frase.
	Keyword bool

	pattern *regexp.Regexp
}

type traitWeight struct {
	traitID string
	weight  float64
}

type phraseMatcher struct {
	phrase  string
	traitID string
	weight  float64
	keyword bool
	pattern *regexp.Regexp
}

// Lexicon traduce palabras y frases a rasgos. Inmutable; recargar implica construir otro.
type Lexicon struct {
	keywords map[string][]traitWeight
	phrases  []phraseMatcher
	traitIDs []string
}

// NewLexicon invierte el mapeo en un indice por palabra y una lista de frases compiladas.
// Las palabras clave con separadores internos ("self-sufficient") se buscan como frases
// pero conservan el peso de palabra clave.
func NewLexicon(mappings map[string]Mapping) (*Lexicon, error) {
	l := &Lexicon{keywords: make(map[string][]traitWeight)}

	ids := make([]string, 0, len(mappings))
	for id := range mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := mappings[id]
		weight := m.Weight
		if weight == 0 {
			weight = 1.0
		}
		if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return nil, fmt.Errorf("%w: lexicon weight for %q must be positive", domain.ErrInvalidInput, id)
		}
		l.traitIDs = append(l.traitIDs, id)

		var compound []string
		for _, kw := range m.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if words := tokenize(kw); len(words) != 1 || words[0] != kw {
				compound = append(compound, kw)
				continue
			}
			l.keywords[kw] = append(l.keywords[kw], traitWeight{traitID: id, weight: weight})
		}
		if err := l.addPhrases(id, weight, m.Phrases, false); err != nil {
			return nil, err
		}
		if err := l.addPhrases(id, weight, compound, true); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Lexicon) addPhrases(traitID string, weight float64, phrases []string, keyword bool) error {
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		re, err := compilePhrase(phrase)
		if err != nil {
			return fmt.Errorf("compile phrase %q: %w", phrase, err)
		}
		l.phrases = append(l.phrases, phraseMatcher{phrase: phrase, traitID: traitID, weight: weight, keyword: keyword, pattern: re})
	}
	return nil
}

// MatchKeywords devuelve, por rasgo, las palabras distintas encontradas en el texto.
func (l *Lexicon) MatchKeywords(text string) map[string][]Match {
	out := make(map[string][]Match)
	seen := make(map[string]struct{})
	for _, word := range tokenize(strings.ToLower(text)) {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		for _, tw := range l.keywords[word] {
			out[tw.traitID] = append(out[tw.traitID], Match{TraitID: tw.traitID, Term: word, Weight: tw.weight})
		}
	}
	return out
}

// MatchPhrases devuelve, por rasgo, las frases encontradas en el texto.
func (l *Lexicon) MatchPhrases(text string) map[string][]Match {
	out := make(map[string][]Match)
	for _, pm := range l.phrases {
		if pm.pattern.MatchString(text) {
			out[pm.traitID] = append(out[pm.traitID], Match{
				TraitID: pm.traitID,
				Term:    pm.phrase,
				Weight:  pm.weight,
				Keyword: pm.keyword,
				pattern: pm.pattern,
			})
		}
	}
	return out
}

// TraitIDs devuelve los rasgos con mapeo, ordenados.
func (l *Lexicon) TraitIDs() []string {
	return append([]string(nil), l.traitIDs...)
}

func compilePhrase(phrase string) (*regexp.Regexp, error) {
	parts := strings.Fields(phrase)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)
}

// tokenize separa en palabras (letras, digitos y guion bajo).
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func containsWord(text, word string) bool {
	for _, w := range tokenize(strings.ToLower(text)) {
		if w == word {
			return true
		}
	}
	return false
}
