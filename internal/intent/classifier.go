package intent

import (
	"regexp"
	"sort"
	"strings"

	"pet-persona/internal/domain"
)

const (
	// QuestionDampening reduce el puntaje de pregunta cuando otra intencion tambien coincide.
	QuestionDampening = 0.6
	// ConfidenceScale amplifica matched/total hacia la confianza final.
	ConfidenceScale = 1.5
	// StatementConfidence es la confianza cuando ningun patron coincide.
	StatementConfidence = 0.5
)

// Result es una intencion con su confianza en [0,1].
type Result struct {
	Intent     domain.Intent `json:"intent"`
	Confidence float64       `json:"confidence"`
}

type rule struct {
	intent   domain.Intent
	priority int
	patterns []*regexp.Regexp
}

// patternTable fija el orden de desempate final.
var patternTable = []struct {
	intent   domain.Intent
	priority int
	patterns []string
}{
	{domain.IntentGreeting, 3, []string{
		`\b(hi|hello|hey|greetings|howdy|sup|yo)\b`,
		`\bgood\s+(morning|afternoon|evening|night)\b`,
		`\bwhat'?s?\s+up\b`,
	}},
	{domain.IntentFarewell, 3, []string{
		`\b(bye|goodbye|goodnight|farewell|see\s+you|later|cya)\b`,
		`\bgotta\s+go\b`,
		`\btalk\s+(to\s+you\s+)?later\b`,
	}},
	{domain.IntentQuestion, 0, []string{
		`\?$`,
		`^(what|who|where|when|why|how|which|whose|whom)\b`,
		`\bdo\s+you\s+(like|want|think|know|feel)\b`,
	}},
	{domain.IntentBonding, 3, []string{
		`\b(love\s+you|miss\s+you|missed\s+you|thinking\s+of\s+you)\b`,
		`\b(best\s+friend|my\s+buddy|my\s+pal)\b`,
		`\bhow\s+are\s+you\b`,
	}},
	{domain.IntentPlay, 3, []string{
		`\b(play|game|fetch|toy|ball|frisbee|catch)\b`,
		`\b(let'?s?\s+play|wanna\s+play|want\s+to\s+play)\b`,
		`\b(run|chase|jump|zoomies)\b`,
	}},
	{domain.IntentFood, 3, []string{
		`\b(food|treat|snack|hungry|eat|dinner|breakfast|lunch)\b`,
		`\b(yummy|delicious|tasty)\b`,
		`\b(feed|feeding|meal)\b`,
	}},
	{domain.IntentTraining, 1, []string{
		`\b(sit|stay|come|heel|down|roll\s+over|shake|paw)\b`,
		`\b(train|training|learn|teach|command)\b`,
		`\b(trick|behavior)\b`,
	}},
	{domain.IntentBehavior, 2, []string{
		`\b(why\s+do\s+you|why\s+are\s+you)\b`,
		`\b(barking|meowing|whining|scratching|biting)\b`,
		`\b(behavior|behave|act|acting)\b`,
	}},
	{domain.IntentHealth, 2, []string{
		`\b(sick|ill|hurt|pain|vet|doctor|medicine)\b`,
		`\b(feel\s+okay|feeling\s+well|not\s+feeling)\b`,
		`\b(health|healthy|checkup)\b`,
	}},
	{domain.IntentAffection, 3, []string{
		`\b(cuddle|hug|pet|scratch|belly\s+rub|pat)\b`,
		`\b(come\s+here|sit\s+with\s+me|snuggle)\b`,
		`\b(good\s+(boy|girl|kitty|doggo))\b`,
	}},
	{domain.IntentCommand, 1, []string{
		`^(sit|stay|come|go|stop|no|yes|okay)[\s!.]*$`,
		`\b(do\s+this|do\s+that|don'?t)\b`,
	}},
}

// Classifier es un clasificador de intenciones por reglas. Seguro para uso concurrente.
type Classifier struct {
	rules []rule
}

func NewClassifier() *Classifier {
	rules := make([]rule, 0, len(patternTable))
	for _, entry := range patternTable {
		r := rule{intent: entry.intent, priority: entry.priority}
		for _, p := range entry.patterns {
			r.patterns = append(r.patterns, regexp.MustCompile(`(?i)`+p))
		}
		rules = append(rules, r)
	}
	return &Classifier{rules: rules}
}

type scored struct {
	rule  *rule
	order int
	score float64
}

func (c *Classifier) match(text string) []scored {
	var out []scored
	for i := range c.rules {
		r := &c.rules[i]
		matched := 0
		for _, p := range r.patterns {
			if p.MatchString(text) {
				matched++
			}
		}
		if matched > 0 {
			out = append(out, scored{rule: r, order: i, score: float64(matched) / float64(len(r.patterns))})
		}
	}
	return out
}

// Classify devuelve la intencion mas probable. Texto vacio da unknown con confianza 0.
func (c *Classifier) Classify(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Intent: domain.IntentUnknown, Confidence: 0}
	}
	matches := c.match(text)
	if len(matches) == 0 {
		return Result{Intent: domain.IntentStatement, Confidence: StatementConfidence}
	}
	if len(matches) > 1 {
		for i := range matches {
			if matches[i].rule.intent == domain.IntentQuestion {
				matches[i].score *= QuestionDampening
			}
		}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.score > best.score || (m.score == best.score && m.rule.priority > best.rule.priority) {
			best = m
		}
	}
	return Result{Intent: best.rule.intent, Confidence: confidence(best.score)}
}

// AllMatches devuelve todas las intenciones que coinciden, sin amortiguar pregunta,
// ordenadas por confianza descendente.
func (c *Classifier) AllMatches(text string) []Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Result{{Intent: domain.IntentUnknown, Confidence: 0}}
	}
	matches := c.match(text)
	if len(matches) == 0 {
		return []Result{{Intent: domain.IntentStatement, Confidence: StatementConfidence}}
	}
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{Intent: m.rule.intent, Confidence: confidence(m.score)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func confidence(score float64) float64 {
	if c := score * ConfidenceScale; c < 1 {
		return c
	}
	return 1
}
