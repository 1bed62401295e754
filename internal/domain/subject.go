package domain

import (
	"fmt"
	"strings"
	"time"
)

// Subject es la mascota cuyo perfil se calcula.
type Subject struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      SubjectKind `json:"kind"`
	Breed     string      `json:"breed"`
	CreatedAt time.Time   `json:"created_at"`
}

func (s Subject) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: subject name is required", ErrInvalidInput)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unsupported subject kind %q", ErrInvalidInput, s.Kind)
	}
	return nil
}

// DocumentType clasifica el origen de un documento.
type DocumentType string

const (
	DocumentUserStory     DocumentType = "user_story"
	DocumentQuestionnaire DocumentType = "questionnaire"
	DocumentBreedInfo     DocumentType = "breed_info"
	DocumentNote          DocumentType = "note"
)

// Scored indica si el tipo alimenta el componente de documentos del usuario.
func (t DocumentType) Scored() bool {
	return t == DocumentUserStory || t == DocumentQuestionnaire
}

// Document es un texto ya materializado asociado a un sujeto.
type Document struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subject_id"`
	Type        DocumentType `json:"type"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	ContentHash string       `json:"content_hash,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SearchResult es un resultado del indice de evidencia.
type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QuestionnaireResponse es una respuesta estructurada del cuestionario.
type QuestionnaireResponse struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	Answer       string `json:"answer"`
	Category     string `json:"category,omitempty"`
}

// Validate exige id de pregunta y respuesta no vacia.
func (r QuestionnaireResponse) Validate() error {
	if strings.TrimSpace(r.QuestionID) == "" {
		return fmt.Errorf("%w: question id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Answer) == "" {
		return fmt.Errorf("%w: question %s has an empty answer", ErrInvalidInput, r.QuestionID)
	}
	return nil
}
