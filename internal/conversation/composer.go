package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pet-persona/internal/domain"
	"pet-persona/internal/intent"
	"pet-persona/internal/retrieval"
	"pet-persona/internal/safety"
	"pet-persona/internal/traits"
)

const (
	DefaultEvidenceK  = 3
	evidenceRunes     = 200
	quoteRunes        = 100
	styleTraits       = 3
	signatureActionAt = 0.6

	ConstraintSafetyResponse = "safety_response"
)

var ErrComposerNotConfigured = errors.New("response composer not configured")

// SubjectSource resuelve un sujeto; devuelve domain.ErrNotFound si no existe.
type SubjectSource interface {
	GetSubject(ctx context.Context, id string) (domain.Subject, error)
}

// SnapshotSource devuelve el snapshot actual de un sujeto.
type SnapshotSource interface {
	Current(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, bool, error)
}

// IndexSource devuelve el indice de evidencia de un sujeto.
type IndexSource interface {
	For(subjectID string) (retrieval.Index, error)
}

// Classifier clasifica la intencion de un mensaje.
type Classifier interface {
	Classify(text string) intent.Result
}

// TurnSink persiste turnos; sus errores se registran y no cortan la respuesta.
type TurnSink interface {
	SaveTurn(ctx context.Context, turn domain.ConversationTurn) error
}

// Recorder recibe eventos para metricas.
type Recorder interface {
	ObserveReply(intent string, d time.Duration)
	ObserveSafety(stage, category string)
	ObserveRetrieval(hits int, err error)
}

// Reply es el resultado de un turno.
type Reply struct {
	Reply            string         `json:"reply"`
	Intent           domain.Intent  `json:"intent"`
	IntentConfidence float64        `json:"intent_confidence"`
	EvidenceUsed     []string       `json:"evidence_used"`
	Constraints      []string       `json:"constraints"`
	Issues           []safety.Issue `json:"issues"`
}

// Composer arma las respuestas de la mascota.
type Composer struct {
	subjects   SubjectSource
	snapshots  SnapshotSource
	indexes    IndexSource
	classifier Classifier
	filter     *safety.Filter
	voice      *Voice
	memories   *MemoryStore
	sink       TurnSink
	recorder   Recorder
	evidenceK  int
	logger     *zap.Logger
}

type ComposerOption func(*Composer)

func WithTurnSink(s TurnSink) ComposerOption { return func(c *Composer) { c.sink = s } }

func WithRecorder(r Recorder) ComposerOption { return func(c *Composer) { c.recorder = r } }

func WithEvidenceK(k int) ComposerOption {
	return func(c *Composer) {
		if k > 0 {
			c.evidenceK = k
		}
	}
}

func WithClassifier(cl Classifier) ComposerOption { return func(c *Composer) { c.classifier = cl } }

func WithMemoryStore(m *MemoryStore) ComposerOption { return func(c *Composer) { c.memories = m } }

// NewComposer requiere sujetos y voz. snapshots e indexes pueden ser nil: sin rasgos
// ni evidencia la respuesta usa las ramas por defecto.
func NewComposer(subjects SubjectSource, snapshots SnapshotSource, indexes IndexSource, voice *Voice, logger *zap.Logger, opts ...ComposerOption) (*Composer, error) {
	if subjects == nil || voice == nil {
		return nil, ErrComposerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	memories, err := NewMemoryStore(DefaultMaxTurns, DefaultSummarizeAfter)
	if err != nil {
		return nil, err
	}
	c := &Composer{
		subjects:   subjects,
		snapshots:  snapshots,
		indexes:    indexes,
		classifier: intent.NewClassifier(),
		filter:     safety.NewFilter(),
		voice:      voice,
		memories:   memories,
		evidenceK:  DefaultEvidenceK,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Memory devuelve la memoria de una conversacion.
func (c *Composer) Memory(subjectID, sessionID string) *Memory {
	return c.memories.Get(subjectID, sessionID)
}

// Respond procesa un turno completo. Los mensajes de riesgo se contestan antes de
// resolver el sujeto; despues de eso solo falla si el sujeto no existe.
func (c *Composer) Respond(ctx context.Context, subjectID, sessionID, text string) (Reply, error) {
	if c == nil {
		return Reply{}, ErrComposerNotConfigured
	}
	started := time.Now()
	if ok, support, concern := c.filter.Inspect(text); !ok {
		c.logger.Warn("concerning input",
			zap.String("subject_id", subjectID),
			zap.String("concern", string(concern)),
		)
		c.observeSafety("input", string(concern))
		reply := Reply{
			Reply:        support,
			Intent:       domain.IntentSafetyConcern,
			EvidenceUsed: []string{},
			Constraints:  []string{ConstraintSafetyResponse},
			Issues:       []safety.Issue{},
		}
		c.observeReply(reply.Intent, started)
		return reply, nil
	}

	subject, err := c.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return Reply{}, fmt.Errorf("get subject: %w", err)
	}

	classified := c.classifier.Classify(text)
	evidence := c.retrieve(ctx, subjectID, text)
	top := c.topTraits(ctx, subjectID)
	constraints := c.constraints(top)

	mem := c.memories.Get(subjectID, sessionID)
	ch := newChooser(subjectID, text, strconv.Itoa(mem.Len()))
	ids := make([]string, 0, len(top))
	for _, ts := range top {
		ids = append(ids, ts.TraitID)
	}
	composed := c.compose(ch, subject, classified.Intent, text, ids, evidence)

	filtered, issues := c.filter.FilterResponse(composed)
	if len(issues) > 0 {
		c.logger.Warn("safety filter triggered",
			zap.String("subject_id", subjectID),
			zap.Any("issues", issues),
		)
		for _, issue := range issues {
			c.observeSafety("output", string(issue))
		}
	}

	turn := domain.ConversationTurn{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		SessionID:   sessionID,
		UserText:    text,
		Reply:       filtered,
		Intent:      classified.Intent,
		Evidence:    evidence,
		Constraints: constraints,
		CreatedAt:   time.Now().UTC(),
	}
	mem.AddTurn(turn)
	if sessionID != "" && c.sink != nil {
		if err := c.sink.SaveTurn(ctx, turn); err != nil {
			c.logger.Error("save conversation turn failed",
				zap.String("subject_id", subjectID),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	c.observeReply(classified.Intent, started)
	return Reply{
		Reply:            filtered,
		Intent:           classified.Intent,
		IntentConfidence: classified.Confidence,
		EvidenceUsed:     evidence,
		Constraints:      constraints,
		Issues:           issues,
	}, nil
}

// VoiceProfile arma el perfil de voz del sujeto con su snapshot actual.
func (c *Composer) VoiceProfile(ctx context.Context, subjectID string) (VoiceProfile, error) {
	if c == nil {
		return VoiceProfile{}, ErrComposerNotConfigured
	}
	subject, err := c.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return VoiceProfile{}, fmt.Errorf("get subject: %w", err)
	}
	var vector domain.TraitVector
	if c.snapshots != nil {
		snap, ok, err := c.snapshots.Current(ctx, subjectID)
		if err != nil {
			return VoiceProfile{}, fmt.Errorf("get current snapshot: %w", err)
		}
		if ok {
			vector = snap.Vector
		}
	}
	return c.voice.BuildProfile(subject, vector), nil
}

func (c *Composer) retrieve(ctx context.Context, subjectID, text string) []string {
	evidence := []string{}
	if c.indexes == nil {
		return evidence
	}
	idx, err := c.indexes.For(subjectID)
	if err == nil {
		var results []domain.SearchResult
		results, err = idx.Search(ctx, text, c.evidenceK, nil)
		for _, r := range results {
			evidence = append(evidence, traits.Truncate(r.Content, evidenceRunes))
		}
	}
	if err != nil {
		c.logger.Warn("evidence retrieval failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		evidence = []string{}
	}
	if c.recorder != nil {
		c.recorder.ObserveRetrieval(len(evidence), err)
	}
	return evidence
}

func (c *Composer) topTraits(ctx context.Context, subjectID string) []domain.TraitScore {
	if c.snapshots == nil {
		return nil
	}
	snap, ok, err := c.snapshots.Current(ctx, subjectID)
	if err != nil {
		c.logger.Warn("current snapshot unavailable",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return snap.Vector.Top(styleTraits)
}

func (c *Composer) constraints(top []domain.TraitScore) []string {
	out := []string{}
	for _, ts := range top {
		guide, ok := c.voice.StyleGuides[ts.TraitID]
		if !ok {
			continue
		}
		name := ts.Name
		if name == "" {
			name = ts.TraitID
		}
		out = append(out, name+": "+guide.Tone)
	}
	return out
}

func (c *Composer) compose(ch *chooser, subject domain.Subject, in domain.Intent, text string, ids []string, evidence []string) string {
	vocab := c.voice.Vocabulary(subject.Kind)
	pick := func(family string) string { return ch.pick(c.voice.branch(family, ids)) }

	var parts []string
	switch in {
	case domain.IntentGreeting:
		parts = append(parts, ch.pick(vocab.Greetings)+" "+pick("greeting"))
	case domain.IntentFarewell:
		parts = append(parts, pick("farewell"))
	case domain.IntentQuestion:
		parts = append(parts, c.answer(ch, text, ids, evidence))
	case domain.IntentBonding:
		parts = append(parts, pick("bonding")+" "+ch.pick(vocab.Expressions))
	case domain.IntentPlay:
		parts = append(parts, pick("play"))
	case domain.IntentFood:
		parts = append(parts, pick("food_expressions")+" "+pick("food"))
	case domain.IntentAffection:
		parts = append(parts, pick("affection")+" "+ch.pick(vocab.Expressions))
	case domain.IntentHealth:
		parts = append(parts, pick("health"))
	default:
		if len(evidence) > 0 {
			parts = append(parts, pick("general_evidence_intro")+" "+quote(evidence[0]))
		} else {
			line := pick("general_default")
			parts = append(parts, strings.ReplaceAll(line, "{affirmative}", ch.pick(vocab.Affirmatives)))
		}
	}

	if len(ids) > 0 && ch.roll() > signatureActionAt {
		parts = append(parts, ch.pick(vocab.SignatureActions))
	}
	return strings.Join(parts, " ")
}

func (c *Composer) answer(ch *chooser, question string, ids []string, evidence []string) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "how are you"):
		return ch.pick(c.voice.branch("how_are_you", ids))
	case strings.Contains(q, "what do you want") || strings.Contains(q, "what would you like"):
		for _, id := range ids {
			if phrases := c.voice.PhraseTemplates[id]; len(phrases) > 0 {
				return ch.pick(phrases)
			}
		}
		return ch.pick(c.voice.branch("wants_default", ids))
	case strings.Contains(q, "do you love me"):
		return ch.pick(c.voice.branch("love_me", ids))
	}
	if len(evidence) > 0 {
		return ch.pick(c.voice.branch("question_evidence_intro", ids)) + " " + quote(evidence[0])
	}
	return ch.pick(c.voice.branch("question_default", ids))
}

func quote(snippet string) string {
	return traits.Truncate(snippet, quoteRunes) + "..."
}

func (c *Composer) observeReply(in domain.Intent, started time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveReply(string(in), time.Since(started))
	}
}

func (c *Composer) observeSafety(stage, category string) {
	if c.recorder != nil {
		c.recorder.ObserveSafety(stage, category)
	}
}
