package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-persona/internal/observability"
	"pet-persona/internal/service"
)

// RouterDeps agrupa los handlers y servicios transversales del router.
type RouterDeps struct {
	Subjects *SubjectHandler
	Chat     *ChatHandler
	Tools    *ToolsHandler
	Auth     *AuthHandler
	Tokens   *service.TokenService
	Metrics  *observability.Metrics
}

// NewRouter configura el router de Gin con middlewares y rutas. /v1 exige JWT solo si
// el servicio de tokens tiene secreto.
func NewRouter(logger *zap.Logger, deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	if deps.Auth != nil {
		auth := r.Group("/auth")
		auth.POST("/token", deps.Auth.IssueToken)
		auth.POST("/refresh", deps.Auth.RefreshToken)
	}

	v1 := r.Group("/v1")
	if deps.Tokens.Enabled() {
		v1.Use(JWTAuthMiddleware(deps.Tokens))
	}

	subjects := v1.Group("/subjects")
	subjects.POST("", deps.Subjects.CreateSubject)
	subjects.GET("/:id", deps.Subjects.GetSubject)
	subjects.POST("/:id/documents", deps.Subjects.AddDocument)
	subjects.GET("/:id/documents", deps.Subjects.ListDocuments)
	subjects.POST("/:id/personality", deps.Subjects.UpdatePersonality)
	subjects.GET("/:id/personality", deps.Subjects.CurrentPersonality)
	subjects.GET("/:id/personality/history", deps.Subjects.PersonalityHistory)
	subjects.GET("/:id/personality/compare", deps.Subjects.ComparePersonality)
	subjects.GET("/:id/voice", deps.Subjects.VoiceProfile)
	subjects.POST("/:id/chat", deps.Chat.Chat)
	subjects.GET("/:id/chat/history", deps.Chat.History)
	subjects.GET("/:id/chat/ws", deps.Chat.Stream)

	v1.PUT("/baselines/:kind", deps.Subjects.SetBaseline)
	v1.PUT("/baselines/:kind/:breed", deps.Subjects.SetBaseline)
	v1.POST("/admin/refresh", deps.Subjects.RefreshAll)

	v1.POST("/score", deps.Tools.Score)
	v1.POST("/intent", deps.Tools.Intent)
	v1.POST("/safety/check", deps.Tools.SafetyCheck)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
