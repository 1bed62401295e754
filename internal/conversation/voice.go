package conversation

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"pet-persona/internal/domain"
)

//go:embed data/voice.yaml
var defaultVoiceYAML []byte

// StyleGuide describe como habla un rasgo.
type StyleGuide struct {
	Style   string `yaml:"style" json:"style"`
	Tone    string `yaml:"tone" json:"tone"`
	Cadence string `yaml:"cadence" json:"cadence"`
}

// Vocabulary es el lexico propio de una especie.
type Vocabulary struct {
	Greetings        []string `yaml:"greetings"`
	Affirmatives     []string `yaml:"affirmatives"`
	Negatives        []string `yaml:"negatives"`
	Expressions      []string `yaml:"expressions"`
	SignatureActions []string `yaml:"signature_actions"`
	StyleBase        string   `yaml:"style_base"`
	SummaryFlavor    string   `yaml:"summary_flavor"`
	Quirks           []string `yaml:"quirks"`
}

// ReplyBranch aplica cuando alguno de los rasgos principales esta en When.
type ReplyBranch struct {
	When  []string `yaml:"when"`
	Lines []string `yaml:"lines"`
}

// Voice son los datos de estilo y plantillas, inmutables despues de cargarse.
type Voice struct {
	StyleGuides     map[string]StyleGuide             `yaml:"style_guides"`
	Vocabularies    map[domain.SubjectKind]Vocabulary `yaml:"vocabularies"`
	PhraseTemplates map[string][]string               `yaml:"phrase_templates"`
	DoRules         map[string][]string               `yaml:"do_rules"`
	GeneralDo       []string                          `yaml:"general_do"`
	DontRules       map[string][]string               `yaml:"dont_rules"`
	GeneralDont     []string                          `yaml:"general_dont"`
	TraitQuirks     map[string]string                 `yaml:"trait_quirks"`
	Replies         map[string][]ReplyBranch          `yaml:"replies"`
}

// Familias que el compositor necesita siempre.
var requiredFamilies = []string{
	"greeting", "farewell", "bonding", "play", "food", "food_expressions", "affection", "health",
	"how_are_you", "love_me", "wants_default", "question_evidence_intro", "question_default",
	"general_evidence_intro", "general_default",
}

// ParseVoice decodifica y valida los datos de voz.
func ParseVoice(raw []byte) (*Voice, error) {
	var v Voice
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode voice data: %w", err)
	}
	for _, kind := range []domain.SubjectKind{domain.SubjectKindDog, domain.SubjectKindCat} {
		vocab, ok := v.Vocabularies[kind]
		if !ok {
			return nil, fmt.Errorf("%w: voice data has no %s vocabulary", domain.ErrInvalidInput, kind)
		}
		if len(vocab.Greetings) == 0 || len(vocab.Affirmatives) == 0 || len(vocab.Expressions) == 0 {
			return nil, fmt.Errorf("%w: %s vocabulary is incomplete", domain.ErrInvalidInput, kind)
		}
	}
	for _, family := range requiredFamilies {
		branches := v.Replies[family]
		if len(branches) == 0 || len(branches[len(branches)-1].When) != 0 {
			return nil, fmt.Errorf("%w: reply family %q needs a default branch", domain.ErrInvalidInput, family)
		}
		for _, b := range branches {
			if len(b.Lines) == 0 {
				return nil, fmt.Errorf("%w: reply family %q has an empty branch", domain.ErrInvalidInput, family)
			}
		}
	}
	return &v, nil
}

// DefaultVoice carga los datos embebidos.
func DefaultVoice() (*Voice, error) {
	return ParseVoice(defaultVoiceYAML)
}

// Vocabulary devuelve el vocabulario de la especie; cualquier otra usa el de gato.
func (v *Voice) Vocabulary(kind domain.SubjectKind) Vocabulary {
	if kind == domain.SubjectKindDog {
		return v.Vocabularies[domain.SubjectKindDog]
	}
	return v.Vocabularies[domain.SubjectKindCat]
}

// branch elige la primera rama que comparte un rasgo con traits.
func (v *Voice) branch(family string, traits []string) []string {
	for _, b := range v.Replies[family] {
		if len(b.When) == 0 {
			return b.Lines
		}
		for _, w := range b.When {
			for _, t := range traits {
				if w == t {
					return b.Lines
				}
			}
		}
	}
	return nil
}

// VoiceProfile resume como habla un sujeto segun sus rasgos principales.
type VoiceProfile struct {
	VoiceName        string   `json:"voice_name"`
	StyleGuide       []string `json:"style_guide"`
	DoSay            []string `json:"do_say"`
	DontSay          []string `json:"dont_say"`
	ExamplePhrases   []string `json:"example_phrases"`
	PersonaSummary   string   `json:"persona_summary"`
	Quirks           []string `json:"quirks"`
	SignatureActions []string `json:"signature_actions"`
}

const (
	voiceProfileTraits = 5
	maxStyleLines      = 10
	maxRules           = 8
	maxExamples        = 6
	maxQuirks          = 5
)

// BuildProfile arma el perfil de voz. Las elecciones salen de pick, asi el mismo
// sujeto y vector producen el mismo perfil.
func (v *Voice) BuildProfile(subject domain.Subject, vector domain.TraitVector) VoiceProfile {
	top := vector.Top(voiceProfileTraits)
	ids := make([]string, 0, len(top))
	for _, ts := range top {
		ids = append(ids, ts.TraitID)
	}
	vocab := v.Vocabulary(subject.Kind)
	ch := newChooser(subject.ID, strings.Join(ids, ","))

	style := []string{vocab.StyleBase}
	for _, id := range ids {
		g, ok := v.StyleGuides[id]
		if !ok {
			continue
		}
		style = append(style, "Style: "+g.Style, "Tone: "+g.Tone, "Cadence: "+g.Cadence)
	}

	var do, dont []string
	for _, id := range ids {
		do = append(do, v.DoRules[id]...)
		dont = append(dont, v.DontRules[id]...)
	}
	do = append(do, v.GeneralDo...)
	dont = append(dont, v.GeneralDont...)

	examples := []string{ch.pick(vocab.Greetings)}
	for _, id := range firstN(ids, 3) {
		phrases := v.PhraseTemplates[id]
		if len(phrases) == 0 {
			continue
		}
		phrase := ch.pick(phrases)
		if ch.roll() > 0.5 {
			phrase += " " + ch.pick(vocab.Expressions)
		}
		examples = append(examples, phrase)
	}
	examples = append(examples, ch.pick(vocab.Affirmatives))

	quirks := ch.sample(vocab.Quirks, 2)
	for _, id := range firstN(ids, 3) {
		if q, ok := v.TraitQuirks[id]; ok {
			quirks = append(quirks, q)
		}
	}

	return VoiceProfile{
		VoiceName:        subject.Name + "'s Voice",
		StyleGuide:       firstN(style, maxStyleLines),
		DoSay:            firstN(uniq(do), maxRules),
		DontSay:          firstN(uniq(dont), maxRules),
		ExamplePhrases:   firstN(examples, maxExamples),
		PersonaSummary:   personaSummary(subject, firstN(ids, 3), vocab),
		Quirks:           firstN(quirks, maxQuirks),
		SignatureActions: ch.sample(vocab.SignatureActions, 3),
	}
}

func personaSummary(subject domain.Subject, ids []string, vocab Vocabulary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a %s", subject.Name, subject.Kind)
	switch len(ids) {
	case 0:
		b.WriteString(".")
	case 1:
		fmt.Fprintf(&b, " who is %s.", ids[0])
	case 2:
		fmt.Fprintf(&b, " who is %s and %s.", ids[0], ids[1])
	default:
		fmt.Fprintf(&b, " who is %s, %s, and %s.", ids[0], ids[1], ids[2])
	}
	if vocab.SummaryFlavor != "" {
		b.WriteString(" " + vocab.SummaryFlavor)
	}
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func uniq(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
