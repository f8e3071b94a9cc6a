package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/liezira/simutbk-backend/internal/engine"
	"github.com/liezira/simutbk-backend/internal/middleware"
	"github.com/liezira/simutbk-backend/internal/service"
	ws "github.com/liezira/simutbk-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one attempt over a WebSocket: answers, advances, and
// integrity events in, state snapshots out.
type WSHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/stream?token=...
// Upgrades to WebSocket for the low-latency attempt channel. Requests are
// also reachable over REST; what only the socket gives is the push side,
// where timer-driven transitions and the graded result arrive unasked.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	attemptID := claims.AttemptID

	wsLog := h.log.With().
		Str("attempt_id", attemptID).
		Str("token", claims.TokenCode).
		Logger()

	// The attempt must be live before streaming.
	if _, err := h.attempts.State(attemptID); err != nil {
		conn.WriteError("attempt not found")
		return
	}

	updates, err := h.attempts.Watch(attemptID)
	if err != nil {
		conn.WriteError("attempt not found")
		return
	}
	done := make(chan struct{})
	defer close(done)
	defer h.attempts.Unwatch(attemptID, updates)
	go h.pushTransitions(conn, updates, done)

	wsLog.Info().Msg("Participant connected")

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, attemptID, &msg)
		case ws.ActionAdvance:
			h.handleAdvance(conn, attemptID)
		case ws.ActionIntegrity:
			h.handleIntegrity(c, conn, wsLog, attemptID, &msg)
		case ws.ActionState:
			h.handleState(conn, attemptID)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// pushTransitions forwards engine-initiated snapshots to the client until the
// read loop exits or the watcher channel is closed by attempt eviction.
// Countdown expiry, section deadlines, breaks ending, and the violation or
// final-deadline result all arrive here without a client request.
func (h *WSHandler) pushTransitions(conn *ws.Conn, updates chan engine.StateSnapshot, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			terminated := snap.Phase == engine.PhaseResult && snap.ViolationReason != ""
			if err := conn.WriteState(terminated, snap); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, attemptID string, msg *ws.RequestPayload) {
	if msg.Value == "" {
		conn.WriteError("value is required")
		return
	}

	state, err := h.attempts.Answer(attemptID, msg.Value)
	if err != nil {
		conn.WriteError(wsErrorMessage(err))
		return
	}
	conn.WriteState(false, state)
}

func (h *WSHandler) handleAdvance(conn *ws.Conn, attemptID string) {
	state, err := h.attempts.Advance(attemptID)
	if err != nil {
		conn.WriteError(wsErrorMessage(err))
		return
	}
	conn.WriteState(false, state)
}

func (h *WSHandler) handleIntegrity(c *gin.Context, conn *ws.Conn, wsLog zerolog.Logger, attemptID string, msg *ws.RequestPayload) {
	if msg.EventType == "" {
		conn.WriteError("event_type is required")
		return
	}

	resp, err := h.attempts.Integrity(c.Request.Context(), attemptID, msg.EventType)
	if err != nil {
		conn.WriteError(wsErrorMessage(err))
		return
	}
	if resp.Terminated {
		wsLog.Info().Str("event_type", msg.EventType).Msg("Attempt terminated by integrity event")
	}
	conn.WriteState(resp.Terminated, resp.State)
}

func (h *WSHandler) handleState(conn *ws.Conn, attemptID string) {
	state, err := h.attempts.State(attemptID)
	if err != nil {
		conn.WriteError(wsErrorMessage(err))
		return
	}
	conn.WriteState(false, state)
}

func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		return "attempt not found"
	case errors.Is(err, engine.ErrSessionEnded):
		return "attempt already finished"
	case errors.Is(err, engine.ErrNotInPhase):
		return "action not valid in current phase"
	default:
		return "internal error"
	}
}
