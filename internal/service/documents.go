package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pet-persona/internal/domain"
	"pet-persona/internal/repository"
	"pet-persona/internal/retrieval"
)

const warmTimeout = 5 * time.Second

// IndexingDocumentStore guarda documentos y los indexa como evidencia del sujeto.
// Un fallo al indexar se registra; el documento ya quedo guardado.
type IndexingDocumentStore struct {
	docs    repository.DocumentRepository
	indexes *retrieval.Registry
	logger  *zap.Logger
}

func NewIndexingDocumentStore(docs repository.DocumentRepository, indexes *retrieval.Registry, logger *zap.Logger) *IndexingDocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexingDocumentStore{docs: docs, indexes: indexes, logger: logger}
}

func (s *IndexingDocumentStore) AddDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	stored, err := s.docs.AddDocument(ctx, doc)
	if err != nil {
		return domain.Document{}, err
	}
	if s.indexes == nil {
		return stored, nil
	}
	idx, err := s.indexes.For(stored.SubjectID)
	if err == nil {
		_, err = retrieval.LoadDocuments(ctx, idx, []domain.Document{stored})
	}
	if err != nil {
		s.logger.Warn("index document failed",
			zap.String("subject_id", stored.SubjectID),
			zap.String("document_id", stored.ID),
			zap.Error(err),
		)
	}
	return stored, nil
}

func (s *IndexingDocumentStore) ListDocuments(ctx context.Context, subjectID string) ([]domain.Document, error) {
	return s.docs.ListDocuments(ctx, subjectID)
}

// WarmingFactory envuelve factory: un indice nuevo y vacio se llena con los documentos
// ya guardados del sujeto. Los backends persistentes llegan con datos y no se recargan.
func WarmingFactory(factory retrieval.Factory, docs repository.DocumentRepository, logger *zap.Logger) retrieval.Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(subjectID string) (retrieval.Index, error) {
		idx, err := factory(subjectID)
		if err != nil {
			return nil, err
		}
		if idx.Count() > 0 {
			return idx, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
		defer cancel()
		stored, err := docs.ListDocuments(ctx, subjectID)
		if err != nil {
			return nil, fmt.Errorf("list documents for warmup: %w", err)
		}
		n, err := retrieval.LoadDocuments(ctx, idx, stored)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			logger.Debug("evidence index warmed", zap.String("subject_id", subjectID), zap.Int("documents", n))
		}
		return idx, nil
	}
}
