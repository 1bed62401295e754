package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pet-persona/internal/service"
)

// AuthHandler emite tokens a clientes que conocen el secreto compartido.
type AuthHandler struct {
	logger       *zap.Logger
	tokens       *service.TokenService
	clientSecret string
}

func NewAuthHandler(logger *zap.Logger, tokens *service.TokenService, clientSecret string) *AuthHandler {
	return &AuthHandler{logger: logger, tokens: tokens, clientSecret: clientSecret}
}

func (h *AuthHandler) enabled() bool {
	return h.tokens.Enabled() && h.clientSecret != ""
}

// secretMatches acepta el secreto en claro o como hash bcrypt ($2a$, $2b$, $2y$).
func (h *AuthHandler) secretMatches(given string) bool {
	if strings.HasPrefix(h.clientSecret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(h.clientSecret), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.clientSecret)) == 1
}

// IssueToken maneja POST /auth/token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	if !h.enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth disabled"})
		return
	}
	var req struct {
		ClientID     string `json:"client_id" binding:"required"`
		ClientSecret string `json:"client_secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid token request")
		return
	}
	if !h.secretMatches(req.ClientSecret) {
		h.logger.Warn("token request rejected", zap.String("client_id", req.ClientID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	pair, err := h.tokens.GeneratePair(c.Request.Context(), req.ClientID)
	if err != nil {
		respondError(c, h.logger, err, "could not issue token")
		return
	}
	c.JSON(http.StatusOK, pair)
}

// RefreshToken maneja POST /auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	if !h.tokens.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth disabled"})
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid refresh request")
		return
	}
	pair, err := h.tokens.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err, "could not refresh token")
		return
	}
	c.JSON(http.StatusOK, pair)
}
