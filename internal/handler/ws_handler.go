package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/engine"
	"github.com/stemsi/vocab-quiz/internal/middleware"
	"github.com/stemsi/vocab-quiz/internal/response"
	"github.com/stemsi/vocab-quiz/internal/validator"
	ws "github.com/stemsi/vocab-quiz/internal/websocket"
)

const maxFrameBytes = 4096

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
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

// WSHandler streams session snapshots and accepts intents over WebSocket.
type WSHandler struct {
	sessions SessionRunner
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionRunner, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Pushes a snapshot after every transition and tick, and applies intents
// sent by the client.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}
	userID := middleware.CurrentUser(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	snaps, unsubscribe, err := h.sessions.Subscribe(ctx, sessionID, userID)
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", sessionID.String()).
		Str("user_id", userID).
		Logger()
	wsLog.Info().Msg("Learner connected")

	out := make(chan any, 8)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readLoop(ctx, conn, wsLog, sessionID, userID, out)
	}()

	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	var last engine.Snapshot
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				_ = ws.WriteTyped(conn, ws.ClosedResponse{Event: ws.EventClosed, State: last.State})
				_ = ws.WriteClose(conn, "session released")
				wsLog.Debug().Msg("Session released, closing stream")
				return
			}
			last = snap
			if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Snapshot: snap}); err != nil {
				wsLog.Debug().Err(err).Msg("Snapshot write failed")
				return
			}
		case msg := <-out:
			if err := ws.WriteTyped(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

// readLoop decodes intents until the client goes away. Replies are handed
// to the writer through out; snapshots arrive through the subscription.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, sessionID uuid.UUID, userID string, out chan<- any) {
	ws.PrepareRead(conn, maxFrameBytes)

	send := func(v any) bool {
		select {
		case out <- v:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		data, err := ws.ReadFrame(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed")
			}
			return
		}

		var req ws.IntentRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !send(ws.ErrorResponse{Event: ws.EventError, Error: string(response.ErrInvalidPayload)}) {
				return
			}
			continue
		}
		if fields := validator.Struct(&req); fields != nil {
			if !send(ws.ErrorResponse{Event: ws.EventError, Error: string(response.ErrValidation), Fields: fields}) {
				return
			}
			continue
		}

		if req.Action == ws.ActionPing {
			if !send(ws.PongResponse{Event: ws.EventPong}) {
				return
			}
			continue
		}

		_, err = h.sessions.Dispatch(ctx, sessionID, userID, req.Intent())
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrInvalidTransition):
			if !send(ws.RejectedResponse{Event: ws.EventRejected, Action: req.Action, Reason: err.Error()}) {
				return
			}
		default:
			_, code := errorCode(err)
			send(ws.ErrorResponse{Event: ws.EventError, Error: string(code)})
			return
		}
	}
}
