package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pet-persona/internal/service"
)

const (
	authClaimsKey = "auth_claims"
	clientIDKey   = "auth_client_id"
)

// JWTAuthMiddleware exige un access token valido en /v1. Deja en el contexto los
// claims y el client id, que el limitador de chat usa como clave.
func JWTAuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() {
			abortUnauthorized(c, http.StatusInternalServerError, "jwt not configured")
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := tokens.ParseAccessToken(token)
		if err != nil || claims.ClientID == "" {
			abortUnauthorized(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(authClaimsKey, claims)
		c.Set(clientIDKey, claims.ClientID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// RateLimitClient devuelve la identidad con la que se limita el chat: el client id
// autenticado o, sin auth, la IP del request.
func RateLimitClient(c *gin.Context) string {
	if id := c.GetString(clientIDKey); id != "" {
		return "client:" + id
	}
	return "ip:" + c.ClientIP()
}
