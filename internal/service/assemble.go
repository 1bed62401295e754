package service

import (
	"go.uber.org/zap"

	"pet-persona/internal/conversation"
	"pet-persona/internal/observability"
	"pet-persona/internal/profile"
	"pet-persona/internal/repository"
	"pet-persona/internal/retrieval"
	"pet-persona/internal/snapshot"
	"pet-persona/internal/traits"
)

// Stack son los almacenes sobre los que se arma el servicio.
type Stack struct {
	Subjects      repository.SubjectRepository
	Documents     repository.DocumentRepository
	Turns         repository.TurnRepository
	Snapshots     snapshot.Store
	Baselines     BaselineStore
	BaselineCache BaselineCache
	IndexFactory  retrieval.Factory
}

// MemoryStack arma todos los almacenes en proceso.
func MemoryStack(factory retrieval.Factory) Stack {
	return Stack{
		Subjects:     repository.NewMemorySubjectRepository(),
		Documents:    repository.NewMemoryDocumentRepository(),
		Turns:        repository.NewMemoryTurnRepository(),
		Snapshots:    snapshot.NewMemoryStore(),
		Baselines:    repository.NewMemoryBaselineRepository(),
		IndexFactory: factory,
	}
}

type AssembleOptions struct {
	Weights              profile.Weights
	Decay                profile.DecayPolicy
	EvidenceK            int
	MemoryMaxTurns       int
	MemorySummarizeAfter int
	Workers              int
	Metrics              *observability.Metrics
}

// DefaultAssembleOptions usa los defaults de cada paquete.
func DefaultAssembleOptions() AssembleOptions {
	return AssembleOptions{
		Weights:              profile.DefaultWeights,
		Decay:                profile.DefaultDecay,
		EvidenceK:            conversation.DefaultEvidenceK,
		MemoryMaxTurns:       conversation.DefaultMaxTurns,
		MemorySummarizeAfter: conversation.DefaultSummarizeAfter,
		Workers:              DefaultRefreshWorkers,
	}
}

// Assemble conecta updater, snapshots, indice de evidencia y compositor sobre stack.
func Assemble(stack Stack, scorer *traits.Scorer, voice *conversation.Voice, opts AssembleOptions, logger *zap.Logger) (*PersonaService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stack.Subjects == nil || stack.Documents == nil || stack.Snapshots == nil || stack.IndexFactory == nil {
		return nil, ErrPersonaServiceNotConfigured
	}

	indexes := retrieval.NewRegistry(WarmingFactory(stack.IndexFactory, stack.Documents, logger))
	documents := NewIndexingDocumentStore(stack.Documents, indexes, logger)
	manager := snapshot.NewManager(stack.Snapshots, logger)

	var baselines *BaselineService
	var baselineSource profile.BaselineSource
	if stack.Baselines != nil {
		baselines = NewBaselineService(stack.Baselines, stack.BaselineCache, scorer, logger)
		baselineSource = baselines
	}

	updater, err := profile.NewUpdater(stack.Subjects, documents, baselineSource, manager, scorer, logger,
		profile.WithWeights(opts.Weights),
		profile.WithDecay(opts.Decay),
	)
	if err != nil {
		return nil, err
	}

	memories, err := conversation.NewMemoryStore(opts.MemoryMaxTurns, opts.MemorySummarizeAfter)
	if err != nil {
		return nil, err
	}
	composerOpts := []conversation.ComposerOption{
		conversation.WithEvidenceK(opts.EvidenceK),
		conversation.WithMemoryStore(memories),
	}
	if stack.Turns != nil {
		composerOpts = append(composerOpts, conversation.WithTurnSink(stack.Turns))
	}
	if opts.Metrics != nil {
		composerOpts = append(composerOpts, conversation.WithRecorder(opts.Metrics))
	}
	composer, err := conversation.NewComposer(stack.Subjects, manager, indexes, voice, logger, composerOpts...)
	if err != nil {
		return nil, err
	}

	deps := PersonaDeps{
		Subjects:  stack.Subjects,
		Documents: documents,
		Turns:     stack.Turns,
		Indexes:   indexes,
		Snapshots: manager,
		Updater:   updater,
		Composer:  composer,
		Baselines: baselines,
		Scorer:    scorer,
		Workers:   opts.Workers,
	}
	if opts.Metrics != nil {
		deps.Observer = opts.Metrics
	}
	return NewPersonaService(deps, logger)
}
