package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pet-persona/internal/observability"
	"pet-persona/internal/service"
)

const (
	wsReadLimit    = 64 << 10
	wsIdleTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// ChatHandler expone la conversacion por HTTP y por websocket.
type ChatHandler struct {
	logger   *zap.Logger
	persona  *service.PersonaService
	limiter  service.ChatRateLimiter
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func NewChatHandler(logger *zap.Logger, persona *service.PersonaService, limiter service.ChatRateLimiter, metrics *observability.Metrics) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		persona: persona,
		limiter: limiter,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
	}
}

// sameOrigin acepta clientes sin Origin y navegadores del mismo host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// allow consulta el limitador por cliente (o IP) y sujeto.
func (h *ChatHandler) allow(ctx context.Context, c *gin.Context, subjectID string) bool {
	if h.limiter == nil {
		return true
	}
	if h.limiter.Allow(ctx, RateLimitClient(c)+":"+subjectID) {
		return true
	}
	h.metrics.ObserveRateLimited()
	return false
}

// Chat maneja POST /v1/subjects/:id/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err, "invalid chat request")
		return
	}
	subjectID := c.Param("id")
	if !h.allow(c.Request.Context(), c, subjectID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}
	reply, err := h.persona.Chat(c.Request.Context(), subjectID, req.SessionID, req.Message)
	if err != nil {
		respondError(c, h.logger, err, "could not generate reply")
		return
	}
	c.JSON(http.StatusOK, reply)
}

// History maneja GET /v1/subjects/:id/chat/history?session=&limit=.
func (h *ChatHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	turns, err := h.persona.ChatHistory(c.Request.Context(), c.Param("id"), c.Query("session"), limit)
	if err != nil {
		respondError(c, h.logger, err, "could not list chat history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

// Stream maneja GET /v1/subjects/:id/chat/ws. Cada mensaje de texto es un chatRequest
// en JSON y recibe una respuesta; los errores viajan como {"error": ...} sin cerrar.
func (h *ChatHandler) Stream(c *gin.Context) {
	subjectID := c.Param("id")
	if _, err := h.persona.GetSubject(c.Request.Context(), subjectID); err != nil {
		respondError(c, h.logger, err, "could not open chat stream")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	sessionID := c.Query("session")

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", zap.String("subject_id", subjectID), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !h.write(conn, gin.H{"error": "invalid message"}) {
				return
			}
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		h.metrics.ObserveWSMessage("inbound")
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		var out any
		if !h.allow(ctx, c, subjectID) {
			out = gin.H{"error": "too many requests"}
		} else if reply, err := h.persona.Chat(ctx, subjectID, req.SessionID, req.Message); err != nil {
			h.logger.Warn("websocket chat failed", zap.String("subject_id", subjectID), zap.Error(err))
			out = gin.H{"error": err.Error()}
		} else {
			out = reply
		}
		if !h.write(conn, out) {
			return
		}
	}
}

func (h *ChatHandler) write(conn *websocket.Conn, msg any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return false
	}
	h.metrics.ObserveWSMessage("outbound")
	return true
}
