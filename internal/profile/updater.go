package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pet-persona/internal/domain"
	"pet-persona/internal/traits"
)

// Nombres de componentes tal como quedan en el registro de evidencia.
const (
	ComponentBaseline      = "baseline"
	ComponentUserDocs      = "user_docs"
	ComponentQuestionnaire = "questionnaire"
	ComponentHistory       = "history"
)

// Weights son los pesos base de cada fuente. User se reparte entre documentos y cuestionario.
type Weights struct {
	Baseline float64
	User     float64
	History  float64
}

var DefaultWeights = Weights{Baseline: 0.3, User: 0.5, History: 0.2}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{"baseline": w.Baseline, "user": w.User, "history": w.History} {
		if v < 0 {
			return fmt.Errorf("%w: %s weight must be non-negative", domain.ErrInvalidInput, name)
		}
	}
	return nil
}

// SubjectSource resuelve un sujeto; devuelve domain.ErrNotFound si no existe.
type SubjectSource interface {
	GetSubject(ctx context.Context, id string) (domain.Subject, error)
}

// DocumentStore provee y agrega documentos ya materializados.
type DocumentStore interface {
	ListDocuments(ctx context.Context, subjectID string) ([]domain.Document, error)
	AddDocument(ctx context.Context, doc domain.Document) (domain.Document, error)
}

// BaselineSource devuelve el vector base de la raza o especie.
type BaselineSource interface {
	Baseline(ctx context.Context, kind domain.SubjectKind, breed string) (domain.TraitVector, bool, error)
}

// SnapshotStore es el subconjunto del almacen de snapshots que usa el updater.
type SnapshotStore interface {
	Current(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, bool, error)
	Create(ctx context.Context, subjectID string, vector domain.TraitVector, evidence domain.EvidenceRecord) (domain.PersonalitySnapshot, error)
}

// UpdateRequest trae las entradas nuevas de una actualizacion.
type UpdateRequest struct {
	SubjectID     string                         `json:"subject_id"`
	NewStories    []string                       `json:"new_stories,omitempty"`
	Questionnaire []domain.QuestionnaireResponse `json:"questionnaire,omitempty"`
}

type UpdateResult struct {
	Snapshot   domain.PersonalitySnapshot `json:"snapshot"`
	Components []string                   `json:"components"`
}

// Updater implementa la actualizacion continua de la personalidad.
type Updater struct {
	subjects      SubjectSource
	documents     DocumentStore
	baselines     BaselineSource
	snapshots     SnapshotStore
	scorer        *traits.Scorer
	questionnaire *QuestionnaireScorer
	weights       Weights
	decay         DecayPolicy
	now           func() time.Time
	logger        *zap.Logger
}

var ErrUpdaterNotConfigured = errors.New("personality updater not configured")

// UpdaterOption ajusta pesos, decaimiento o reloj.
type UpdaterOption func(*Updater)

func WithWeights(w Weights) UpdaterOption { return func(u *Updater) { u.weights = w } }

func WithDecay(p DecayPolicy) UpdaterOption { return func(u *Updater) { u.decay = p } }

func WithClock(now func() time.Time) UpdaterOption { return func(u *Updater) { u.now = now } }

// NewUpdater arma el updater. baselines puede ser nil (peso base cero).
func NewUpdater(
	subjects SubjectSource,
	documents DocumentStore,
	baselines BaselineSource,
	snapshots SnapshotStore,
	scorer *traits.Scorer,
	logger *zap.Logger,
	opts ...UpdaterOption,
) (*Updater, error) {
	if subjects == nil || documents == nil || snapshots == nil || scorer == nil {
		return nil, ErrUpdaterNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Updater{
		subjects:      subjects,
		documents:     documents,
		baselines:     baselines,
		snapshots:     snapshots,
		scorer:        scorer,
		questionnaire: NewQuestionnaireScorer(scorer),
		weights:       DefaultWeights,
		decay:         DefaultDecay,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := u.weights.Validate(); err != nil {
		return nil, err
	}
	if err := u.decay.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdatePersonality mezcla base, documentos, cuestionario e historia y crea un snapshot nuevo.
// Sin evidencia igual se crea un snapshot vacio con version incrementada.
func (u *Updater) UpdatePersonality(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	if u == nil {
		return UpdateResult{}, ErrUpdaterNotConfigured
	}
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return UpdateResult{}, fmt.Errorf("%w: subject id is required", domain.ErrInvalidInput)
	}

	var questionnaireScores map[string]domain.TraitScore
	if len(req.Questionnaire) > 0 {
		scores, err := u.questionnaire.Score(req.Questionnaire)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("score questionnaire: %w", err)
		}
		questionnaireScores = scores
	}

	subject, err := u.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("get subject: %w", err)
	}

	for i, story := range req.NewStories {
		if strings.TrimSpace(story) == "" {
			continue
		}
		doc := domain.Document{
			SubjectID: subjectID,
			Type:      domain.DocumentUserStory,
			Title:     fmt.Sprintf("Story %d", i+1),
			Content:   story,
		}
		if _, err := u.documents.AddDocument(ctx, doc); err != nil {
			return UpdateResult{}, fmt.Errorf("add story: %w", err)
		}
	}

	now := u.now()
	var components []Component

	if baseline := u.baseline(ctx, subject); !baseline.IsEmpty() {
		components = append(components, Component{Name: ComponentBaseline, Vector: baseline, Weight: u.weights.Baseline})
	}

	docs, err := u.documents.ListDocuments(ctx, subjectID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("list documents: %w", err)
	}
	var texts []string
	for _, d := range docs {
		if d.Type.Scored() {
			texts = append(texts, d.Content)
		}
	}
	if userVector := u.scorer.Vector(texts, now); !userVector.IsEmpty() {
		components = append(components, Component{Name: ComponentUserDocs, Vector: userVector, Weight: u.weights.User * 0.5})
	}

	if len(questionnaireScores) > 0 {
		components = append(components, Component{
			Name:   ComponentQuestionnaire,
			Vector: domain.TraitVector{Traits: questionnaireScores, ComputedAt: now},
			Weight: u.weights.User * 0.5,
		})
	}

	current, ok, err := u.snapshots.Current(ctx, subjectID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("get current snapshot: %w", err)
	}
	if ok && !current.Vector.IsEmpty() {
		decay := u.decay.Factor(current.CreatedAt, now)
		components = append(components, Component{Name: ComponentHistory, Vector: current.Vector, Weight: u.weights.History * decay})
		u.logger.Debug("history component",
			zap.String("subject_id", subjectID),
			zap.Int("version", current.Version),
			zap.Float64("decay", decay),
		)
	}

	blended, err := Blend(components, now)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("blend components: %w", err)
	}

	record := domain.EvidenceRecord{Sources: []string{}, Weights: map[string]float64{}}
	names := make([]string, 0, len(components))
	for _, c := range components {
		record.Sources = append(record.Sources, c.Name)
		record.Weights[c.Name] = c.Weight
		names = append(names, c.Name)
	}

	snap, err := u.snapshots.Create(ctx, subjectID, blended, record)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("create snapshot: %w", err)
	}

	u.logger.Info("personality updated",
		zap.String("subject_id", subjectID),
		zap.Int("version", snap.Version),
		zap.Int("traits", blended.Len()),
		zap.Strings("sources", names),
	)
	return UpdateResult{Snapshot: snap, Components: names}, nil
}

// baseline degrada a vector vacio si la fuente falla o no existe.
func (u *Updater) baseline(ctx context.Context, subject domain.Subject) domain.TraitVector {
	if u.baselines == nil {
		return domain.TraitVector{}
	}
	vec, ok, err := u.baselines.Baseline(ctx, subject.Kind, subject.Breed)
	if err != nil {
		u.logger.Warn("baseline unavailable",
			zap.String("subject_id", subject.ID),
			zap.String("breed", subject.Breed),
			zap.Error(err),
		)
		return domain.TraitVector{}
	}
	if !ok {
		return domain.TraitVector{}
	}
	return vec
}
