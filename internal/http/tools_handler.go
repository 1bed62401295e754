package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-persona/internal/service"
)

// ToolsHandler expone el scorer, el clasificador y el filtro sin estado de sujeto.
type ToolsHandler struct {
	logger  *zap.Logger
	persona *service.PersonaService
}

func NewToolsHandler(logger *zap.Logger, persona *service.PersonaService) *ToolsHandler {
	return &ToolsHandler{logger: logger, persona: persona}
}

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

// Score maneja POST /v1/score.
func (h *ToolsHandler) Score(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid score request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"traits": h.persona.ScoreText(req.Text)})
}

// Intent maneja POST /v1/intent.
func (h *ToolsHandler) Intent(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid intent request")
		return
	}
	c.JSON(http.StatusOK, h.persona.ClassifyIntent(req.Text))
}

// SafetyCheck maneja POST /v1/safety/check.
func (h *ToolsHandler) SafetyCheck(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid safety request")
		return
	}
	c.JSON(http.StatusOK, h.persona.CheckSafety(req.Text))
}
