package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"pet-persona/internal/conversation"
	"pet-persona/internal/domain"
	"pet-persona/internal/intent"
	"pet-persona/internal/profile"
	"pet-persona/internal/repository"
	"pet-persona/internal/retrieval"
	"pet-persona/internal/safety"
	"pet-persona/internal/snapshot"
	"pet-persona/internal/traits"
)

const (
	DefaultRefreshWorkers = 4
	maxChatRunes          = 2000
	defaultTurnsLimit     = 50
)

var ErrPersonaServiceNotConfigured = errors.New("persona service not configured")

// UpdateObserver recibe el resultado de cada actualizacion de personalidad.
type UpdateObserver interface {
	ObserveUpdate(result string)
}

// PersonaDeps son los colaboradores ya construidos del servicio.
type PersonaDeps struct {
	Subjects  repository.SubjectRepository
	Documents *IndexingDocumentStore
	Turns     repository.TurnRepository
	Indexes   *retrieval.Registry
	Snapshots *snapshot.Manager
	Updater   *profile.Updater
	Composer  *conversation.Composer
	Baselines *BaselineService
	Scorer    *traits.Scorer
	Observer  UpdateObserver
	Workers   int
}

// PersonaService orquesta sujetos, documentos, personalidad y conversacion.
type PersonaService struct {
	deps       PersonaDeps
	classifier *intent.Classifier
	filter     *safety.Filter
	logger     *zap.Logger
}

func NewPersonaService(deps PersonaDeps, logger *zap.Logger) (*PersonaService, error) {
	if deps.Subjects == nil || deps.Documents == nil || deps.Snapshots == nil || deps.Updater == nil || deps.Composer == nil || deps.Scorer == nil {
		return nil, ErrPersonaServiceNotConfigured
	}
	if deps.Workers <= 0 {
		deps.Workers = DefaultRefreshWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonaService{
		deps:       deps,
		classifier: intent.NewClassifier(),
		filter:     safety.NewFilter(),
		logger:     logger,
	}, nil
}

func (s *PersonaService) CreateSubject(ctx context.Context, subject domain.Subject) (domain.Subject, error) {
	if s == nil {
		return domain.Subject{}, ErrPersonaServiceNotConfigured
	}
	created, err := s.deps.Subjects.CreateSubject(ctx, subject)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("create subject: %w", err)
	}
	s.logger.Info("subject created",
		zap.String("subject_id", created.ID),
		zap.String("kind", string(created.Kind)),
		zap.String("breed", created.Breed),
	)
	return created, nil
}

func (s *PersonaService) GetSubject(ctx context.Context, id string) (domain.Subject, error) {
	if s == nil {
		return domain.Subject{}, ErrPersonaServiceNotConfigured
	}
	return s.deps.Subjects.GetSubject(ctx, id)
}

// AddDocument guarda e indexa un documento de un sujeto existente.
func (s *PersonaService) AddDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if s == nil {
		return domain.Document{}, ErrPersonaServiceNotConfigured
	}
	if _, err := s.deps.Subjects.GetSubject(ctx, doc.SubjectID); err != nil {
		return domain.Document{}, fmt.Errorf("get subject: %w", err)
	}
	stored, err := s.deps.Documents.AddDocument(ctx, doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("add document: %w", err)
	}
	return stored, nil
}

func (s *PersonaService) ListDocuments(ctx context.Context, subjectID string) ([]domain.Document, error) {
	if s == nil {
		return nil, ErrPersonaServiceNotConfigured
	}
	if _, err := s.deps.Subjects.GetSubject(ctx, subjectID); err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return s.deps.Documents.ListDocuments(ctx, subjectID)
}

func (s *PersonaService) UpdatePersonality(ctx context.Context, req profile.UpdateRequest) (profile.UpdateResult, error) {
	if s == nil {
		return profile.UpdateResult{}, ErrPersonaServiceNotConfigured
	}
	res, err := s.deps.Updater.UpdatePersonality(ctx, req)
	if err != nil {
		s.observe("error")
		return profile.UpdateResult{}, err
	}
	s.observe("ok")
	return res, nil
}

func (s *PersonaService) CurrentPersonality(ctx context.Context, subjectID string) (domain.PersonalitySnapshot, error) {
	if s == nil {
		return domain.PersonalitySnapshot{}, ErrPersonaServiceNotConfigured
	}
	return s.deps.Snapshots.GetCurrent(ctx, subjectID)
}

func (s *PersonaService) PersonalityHistory(ctx context.Context, subjectID string) ([]domain.PersonalitySnapshot, error) {
	if s == nil {
		return nil, ErrPersonaServiceNotConfigured
	}
	return s.deps.Snapshots.GetHistory(ctx, subjectID)
}

func (s *PersonaService) ComparePersonality(ctx context.Context, subjectID string, v1, v2 int) (domain.SnapshotDiff, error) {
	if s == nil {
		return domain.SnapshotDiff{}, ErrPersonaServiceNotConfigured
	}
	return s.deps.Snapshots.Compare(ctx, subjectID, v1, v2)
}

func (s *PersonaService) VoiceProfile(ctx context.Context, subjectID string) (conversation.VoiceProfile, error) {
	if s == nil {
		return conversation.VoiceProfile{}, ErrPersonaServiceNotConfigured
	}
	return s.deps.Composer.VoiceProfile(ctx, subjectID)
}

// Chat responde un mensaje. El texto vacio o demasiado largo se rechaza antes de componer.
func (s *PersonaService) Chat(ctx context.Context, subjectID, sessionID, text string) (conversation.Reply, error) {
	if s == nil {
		return conversation.Reply{}, ErrPersonaServiceNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return conversation.Reply{}, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if len([]rune(text)) > maxChatRunes {
		return conversation.Reply{}, fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidInput, maxChatRunes)
	}
	return s.deps.Composer.Respond(ctx, subjectID, strings.TrimSpace(sessionID), text)
}

// ChatHistory devuelve los turnos guardados de una sesion.
func (s *PersonaService) ChatHistory(ctx context.Context, subjectID, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if s == nil || s.deps.Turns == nil {
		return nil, ErrPersonaServiceNotConfigured
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultTurnsLimit
	}
	return s.deps.Turns.ListTurns(ctx, subjectID, sessionID, limit)
}

func (s *PersonaService) SetBaseline(ctx context.Context, kind domain.SubjectKind, breed string, texts []string) (domain.TraitVector, error) {
	if s == nil || s.deps.Baselines == nil {
		return domain.TraitVector{}, ErrBaselineServiceNotConfigured
	}
	return s.deps.Baselines.SetBaseline(ctx, kind, breed, texts)
}

func (s *PersonaService) ScoreText(text string) map[string]domain.TraitScore {
	return s.deps.Scorer.ScoreText(text)
}

type IntentReport struct {
	Best       intent.Result   `json:"best"`
	AllMatches []intent.Result `json:"all_matches"`
}

func (s *PersonaService) ClassifyIntent(text string) IntentReport {
	return IntentReport{Best: s.classifier.Classify(text), AllMatches: s.classifier.AllMatches(text)}
}

// SafetyReport combina el chequeo de entrada y el filtro de salida sobre un texto.
type SafetyReport struct {
	InputOK  bool           `json:"input_ok"`
	Concern  safety.Concern `json:"concern,omitempty"`
	Support  string         `json:"support,omitempty"`
	Filtered string         `json:"filtered"`
	Issues   []safety.Issue `json:"issues"`
}

func (s *PersonaService) CheckSafety(text string) SafetyReport {
	ok, support, concern := s.filter.Inspect(text)
	filtered, issues := s.filter.FilterResponse(text)
	return SafetyReport{InputOK: ok, Concern: concern, Support: support, Filtered: filtered, Issues: issues}
}

// RefreshReport resume una pasada de RefreshAll.
type RefreshReport struct {
	Subjects  int      `json:"subjects"`
	Refreshed int      `json:"refreshed"`
	Failed    []string `json:"failed"`
}

// RefreshAll recalcula la personalidad de todos los sujetos sin evidencia nueva, con
// un pool acotado de workers. Los fallos por sujeto se reportan y no cortan la pasada.
func (s *PersonaService) RefreshAll(ctx context.Context) (RefreshReport, error) {
	if s == nil {
		return RefreshReport{}, ErrPersonaServiceNotConfigured
	}
	subjects, err := s.deps.Subjects.ListSubjects(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("list subjects: %w", err)
	}
	pool, err := ants.NewPool(s.deps.Workers)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		refreshed atomic.Int64
		mu        sync.Mutex
		failed    = []string{}
	)
	fail := func(id string) {
		mu.Lock()
		failed = append(failed, id)
		mu.Unlock()
	}
	for _, subj := range subjects {
		id := subj.ID
		if ctx.Err() != nil {
			fail(id)
			continue
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if _, err := s.UpdatePersonality(ctx, profile.UpdateRequest{SubjectID: id}); err != nil {
				s.logger.Warn("refresh personality failed", zap.String("subject_id", id), zap.Error(err))
				fail(id)
				return
			}
			refreshed.Add(1)
		})
		if err != nil {
			wg.Done()
			fail(id)
		}
	}
	wg.Wait()
	sort.Strings(failed)

	report := RefreshReport{Subjects: len(subjects), Refreshed: int(refreshed.Load()), Failed: failed}
	s.logger.Info("personality refresh finished",
		zap.Int("subjects", report.Subjects),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *PersonaService) observe(result string) {
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveUpdate(result)
	}
}
