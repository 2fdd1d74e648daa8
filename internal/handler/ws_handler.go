package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
	ws "github.com/stemsi/exstem-practice/internal/websocket"
)

const keepAliveInterval = 30 * time.Second

// ResultSubscriber streams recorded results published by any server instance.
type ResultSubscriber interface {
	SubscribeResults(ctx context.Context) (<-chan *redis.Message, func() error, error)
}

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

// WSHandler streams the live results feed to admins.
type WSHandler struct {
	feed      ResultSubscriber
	log       zerolog.Logger
	upgrader  websocket.Upgrader
	keepAlive time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(feed ResultSubscriber, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		feed:      feed,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
		keepAlive: keepAliveInterval,
	}
}

// ResultsStream godoc
// WS /ws/practice-results/stream?token=
// Pushes every newly recorded practice result as it happens.
func (h *WSHandler) ResultsStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().Int("admin_id", claims.UserID).Logger()

	messages, unsubscribe, err := h.feed.SubscribeResults(ctx)
	if err != nil {
		wsLog.Error().Err(err).Msg("Results feed subscription failed")
		_ = ws.WriteError(conn, "results feed unavailable")
		return
	}
	defer func() {
		if err := unsubscribe(); err != nil {
			h.log.Warn().Err(err).Msg("Unsubscribe failed")
		}
	}()
	wsLog.Info().Msg("Admin attached to results feed")

	if err := ws.WriteTyped(conn, ws.ReadyResponse{Event: ws.EventReady}); err != nil {
		return
	}

	pings := make(chan struct{}, 1)
	go h.readLoop(conn, wsLog, cancel, pings)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Results feed closed")
			return

		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}

		case msg, ok := <-messages:
			if !ok {
				return
			}
			var res model.PracticeResult
			if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed feed message")
				if err := ws.WriteError(conn, "malformed result skipped"); err != nil {
					return
				}
				continue
			}
			if err := ws.WriteTyped(conn, ws.ResultResponse{Event: ws.EventResult, Result: res}); err != nil {
				wsLog.Debug().Err(err).Msg("Write to admin failed")
				return
			}
		}
	}
}

// readLoop owns the read side of the connection. It answers application
// pings through the writer and cancels the stream when the client goes away.
func (h *WSHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger, cancel context.CancelFunc, pings chan<- struct{}) {
	defer cancel()
	ws.KeepAlive(conn)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			select {
			case pings <- struct{}{}:
			default:
			}
		default:
			wsLog.Debug().Str("action", string(msg.Action)).Msg("Ignoring unknown action")
		}
	}
}
