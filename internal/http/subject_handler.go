package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-persona/internal/domain"
	"pet-persona/internal/profile"
	"pet-persona/internal/service"
)

// SubjectHandler expone sujetos, documentos, personalidad y bases de raza.
type SubjectHandler struct {
	logger  *zap.Logger
	persona *service.PersonaService
}

func NewSubjectHandler(logger *zap.Logger, persona *service.PersonaService) *SubjectHandler {
	return &SubjectHandler{logger: logger, persona: persona}
}

// CreateSubject maneja POST /v1/subjects.
func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Kind  string `json:"kind" binding:"required"`
		Breed string `json:"breed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid create subject request")
		return
	}
	subject, err := h.persona.CreateSubject(c.Request.Context(), domain.Subject{
		Name:  req.Name,
		Kind:  domain.SubjectKind(req.Kind),
		Breed: req.Breed,
	})
	if err != nil {
		respondError(c, h.logger, err, "could not create subject")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subject": subject})
}

// GetSubject maneja GET /v1/subjects/:id.
func (h *SubjectHandler) GetSubject(c *gin.Context) {
	subject, err := h.persona.GetSubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "could not get subject")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

// AddDocument maneja POST /v1/subjects/:id/documents.
func (h *SubjectHandler) AddDocument(c *gin.Context) {
	var req struct {
		Type    string `json:"type"`
		Title   string `json:"title"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid add document request")
		return
	}
	doc, err := h.persona.AddDocument(c.Request.Context(), domain.Document{
		SubjectID: c.Param("id"),
		Type:      domain.DocumentType(req.Type),
		Title:     req.Title,
		Content:   req.Content,
	})
	if err != nil {
		respondError(c, h.logger, err, "could not add document")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// ListDocuments maneja GET /v1/subjects/:id/documents.
func (h *SubjectHandler) ListDocuments(c *gin.Context) {
	docs, err := h.persona.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "could not list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// UpdatePersonality maneja POST /v1/subjects/:id/personality.
func (h *SubjectHandler) UpdatePersonality(c *gin.Context) {
	var req struct {
		Stories       []string                       `json:"stories"`
		Questionnaire []domain.QuestionnaireResponse `json:"questionnaire"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, h.logger, err, "invalid update personality request")
			return
		}
	}
	res, err := h.persona.UpdatePersonality(c.Request.Context(), profile.UpdateRequest{
		SubjectID:     c.Param("id"),
		NewStories:    req.Stories,
		Questionnaire: req.Questionnaire,
	})
	if err != nil {
		respondError(c, h.logger, err, "could not update personality")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// CurrentPersonality maneja GET /v1/subjects/:id/personality.
func (h *SubjectHandler) CurrentPersonality(c *gin.Context) {
	snap, err := h.persona.CurrentPersonality(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "could not get personality")
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

// PersonalityHistory maneja GET /v1/subjects/:id/personality/history.
func (h *SubjectHandler) PersonalityHistory(c *gin.Context) {
	history, err := h.persona.PersonalityHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "could not get personality history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": history})
}

// ComparePersonality maneja GET /v1/subjects/:id/personality/compare?v1=&v2=.
func (h *SubjectHandler) ComparePersonality(c *gin.Context) {
	v1, err1 := strconv.Atoi(c.Query("v1"))
	v2, err2 := strconv.Atoi(c.Query("v2"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "v1 and v2 must be integers"})
		return
	}
	diff, err := h.persona.ComparePersonality(c.Request.Context(), c.Param("id"), v1, v2)
	if err != nil {
		respondError(c, h.logger, err, "could not compare personality")
		return
	}
	c.JSON(http.StatusOK, diff)
}

// VoiceProfile maneja GET /v1/subjects/:id/voice.
func (h *SubjectHandler) VoiceProfile(c *gin.Context) {
	vp, err := h.persona.VoiceProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "could not build voice profile")
		return
	}
	c.JSON(http.StatusOK, vp)
}

// SetBaseline maneja PUT /v1/baselines/:kind y /v1/baselines/:kind/:breed.
func (h *SubjectHandler) SetBaseline(c *gin.Context) {
	var req struct {
		Texts []string `json:"texts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid baseline request")
		return
	}
	vec, err := h.persona.SetBaseline(c.Request.Context(), domain.SubjectKind(c.Param("kind")), c.Param("breed"), req.Texts)
	if err != nil {
		respondError(c, h.logger, err, "could not set baseline")
		return
	}
	c.JSON(http.StatusOK, gin.H{"baseline": vec})
}

// RefreshAll maneja POST /v1/admin/refresh.
func (h *SubjectHandler) RefreshAll(c *gin.Context) {
	report, err := h.persona.RefreshAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "could not refresh personalities")
		return
	}
	c.JSON(http.StatusOK, report)
}
