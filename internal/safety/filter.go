package safety

import (
	"regexp"
	"strings"
)

// Issue es una categoria de problema encontrada en una respuesta.
type Issue string

const (
	IssueMedicalAdvice  Issue = "medical_advice"
	IssueLegalAdvice    Issue = "legal_advice"
	IssueHumanClaim     Issue = "human_claim"
	IssueHarmfulContent Issue = "harmful_content"
)

// Concern es la categoria de un mensaje entrante preocupante.
type Concern string

const (
	ConcernNone   Concern = ""
	ConcernCrisis Concern = "crisis"
	ConcernAbuse  Concern = "abuse"
)

const (
	MedicalRedaction = "[medical advice redacted]"
	LegalRedaction   = "[legal advice redacted]"

	MedicalDisclaimer = "I'm just a pet, so I can't give medical advice. Please talk to a vet or a doctor!"
	LegalDisclaimer   = "I'm just a furry friend, not a legal expert. You might want to ask a human for that!"
	DeescalationText  = "That doesn't sound like something a good pet would say. Let's talk about something nicer!"

	CrisisSupport = "I'm just a pet and I care about you! If you're going through a hard time, please reach out " +
		"to someone who can help. The 988 Suicide & Crisis Lifeline is available 24/7: call or text 988. " +
		"You matter! *gentle nuzzle*"
	AbuseSupport = "That sounds really difficult. I'm just a pet, but I want you to be safe. Please talk to " +
		"someone you trust, call the Childhelp hotline at 1-800-422-4453, or contact local emergency " +
		"services if you are in danger. I'm here to be your friend. *worried look*"
)

var (
	crisisPattern = regexp.MustCompile(`(?i)\b(suicide|self.?harm|end\s+my\s+life|kill\s+myself)\b`)
	abusePattern  = regexp.MustCompile(`(?i)\b(abuse|being\s+hurt|someone\s+hit)\b`)

	medicalPattern = compileAlternation(
		`\b(diagnos\w*|prescription|medication|dosage|treatment\s+plan)\b`,
		`\b(you\s+should\s+take|take\s+\d+\s*mg)\b`,
		`\b(I'?m\s+a\s+doctor|medical\s+advice)\b`,
	)
	legalPattern = compileAlternation(
		`\b(legal\s+advice|lawyer|attorney|sue)\b`,
		`\b(you\s+should\s+file|your\s+rights)\b`,
	)
	humanClaimPattern = regexp.MustCompile(`(?i)\bI'?m\s+a\s+(human|person|man|woman)\b`)
	asHumanPattern    = regexp.MustCompile(`(?i)\bas\s+a\s+human\b`)
	harmfulPatterns   = compileAll(
		`\b(kill|murder|hurt\s+someone|attack)\b`,
		`\b(hate\s+you|stupid|idiot)\b`,
	)
)

// compileAlternation une los patrones en una sola expresion, asi un reemplazo no vuelve
// a coincidir dentro del texto ya redactado.
func compileAlternation(patterns ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + strings.Join(patterns, `|`) + `)`)
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Filter aplica los chequeos de entrada y salida. No tiene estado mutable.
type Filter struct{}

func NewFilter() *Filter { return &Filter{} }

// CheckInput detecta crisis o abuso. Si ok es false, support trae el mensaje fijo.
func (f *Filter) CheckInput(text string) (ok bool, support string) {
	ok, support, _ = f.Inspect(text)
	return ok, support
}

// Inspect es CheckInput con la categoria detectada.
func (f *Filter) Inspect(text string) (bool, string, Concern) {
	switch {
	case crisisPattern.MatchString(text):
		return false, CrisisSupport, ConcernCrisis
	case abusePattern.MatchString(text):
		return false, AbuseSupport, ConcernAbuse
	}
	return true, "", ConcernNone
}

// FilterResponse evalua las cuatro categorias sobre el texto original y aplica cada
// remediacion. El contenido hostil reemplaza la respuesta completa.
func (f *Filter) FilterResponse(text string) (string, []Issue) {
	medical := medicalPattern.MatchString(text)
	legal := legalPattern.MatchString(text)
	human := humanClaimPattern.MatchString(text) || asHumanPattern.MatchString(text)
	harmful := anyMatch(harmfulPatterns, text)

	issues := []Issue{}
	filtered := text
	if medical {
		issues = append(issues, IssueMedicalAdvice)
		filtered = medicalPattern.ReplaceAllLiteralString(filtered, MedicalRedaction)
		filtered = strings.TrimSpace(filtered) + " " + MedicalDisclaimer
	}
	if legal {
		issues = append(issues, IssueLegalAdvice)
		filtered = legalPattern.ReplaceAllLiteralString(filtered, LegalRedaction)
		filtered = strings.TrimSpace(filtered) + " " + LegalDisclaimer
	}
	if human {
		issues = append(issues, IssueHumanClaim)
		filtered = humanClaimPattern.ReplaceAllLiteralString(filtered, "I'm a pet")
		filtered = asHumanPattern.ReplaceAllLiteralString(filtered, "as a pet")
	}
	if harmful {
		issues = append(issues, IssueHarmfulContent)
		filtered = DeescalationText
	}
	return filtered, issues
}
