// Package server is the connection gateway: it accepts websocket and HTTP
// requests, decodes the wire protocol, and hands decoded events to the
// delivery engine. Business logic (validation, blocking, persistence) lives
// behind the engine, never here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rakhisingh42/Chat-Application/internal/chat"
	"github.com/rakhisingh42/Chat-Application/internal/config"
	"github.com/rakhisingh42/Chat-Application/internal/logger"
	"github.com/rakhisingh42/Chat-Application/internal/session"
	"github.com/rakhisingh42/Chat-Application/internal/store"
	"github.com/rakhisingh42/Chat-Application/internal/uploads"
)

// HistoryStore is the read side of the message history used by the gateway's
// history endpoint.
type HistoryStore interface {
	ListMessagesBetween(ctx context.Context, userA, userB string, limit int) ([]store.Message, error)
}

// Gateway wires transport endpoints to the core components. It holds no
// message state of its own.
type Gateway struct {
	engine    *chat.Engine
	directory *session.Directory
	registry  *chat.BlockRegistry
	history   HistoryStore
	files     *uploads.FileStore

	upgrader       websocket.Upgrader
	maxMessageSize int64
	rateLimit      config.RateLimitConfig
}

// NewGateway constructs a Gateway with its collaborators injected.
func NewGateway(
	engine *chat.Engine,
	directory *session.Directory,
	registry *chat.BlockRegistry,
	history HistoryStore,
	files *uploads.FileStore,
	cfg *config.Config,
) *Gateway {
	origins := newOriginChecker(cfg.Server.AllowedOrigins)
	return &Gateway{
		engine:    engine,
		directory: directory,
		registry:  registry,
		history:   history,
		files:     files,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		maxMessageSize: cfg.Server.MaxMessageSize,
		rateLimit:      cfg.RateLimit,
	}
}

// Websocket upgrades the connection, registers the session under the supplied
// username, and pumps inbound frames into the delivery engine until the
// client disconnects.
func (g *Gateway) Websocket(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		logger.L.Warn("websocket upgrade failed", "remote", c.Request.RemoteAddr, "error", err)
		return
	}

	sess := session.New(username, conn)
	g.directory.Register(sess)
	defer func() {
		g.directory.Unregister(sess)
		sess.Close(websocket.CloseNormalClosure, "session closed")
	}()

	if err := g.engine.Connect(c.Request.Context(), username); err != nil {
		logger.L.Warn("recording user failed", "username", username, "error", err)
	}

	// Handshake ack so clients know the session is addressable.
	if ack, err := json.Marshal(gin.H{"event": "connected", "session_id": sess.ID}); err == nil {
		_ = sess.Send(ack)
	}

	g.readLoop(conn, sess)
}

const readTimeout = 60 * time.Second

func (g *Gateway) readLoop(conn *websocket.Conn, sess *session.Session) {
	conn.SetReadLimit(g.maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	limiter := newRateLimiter(g.rateLimit.Burst, g.rateLimit.RefillInterval)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			g.logReadError(sess, err)
			return
		}

		if !limiter.allow() {
			logger.L.Warn("rate limit exceeded, discarding frame",
				"username", sess.Username, "burst", g.rateLimit.Burst)
			continue
		}

		var ev chat.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			g.replyError(sess, chat.CodeBadRequest, "invalid payload")
			continue
		}
		ev.Raw = raw

		if err := g.engine.Submit(ev); err != nil {
			logger.L.Warn("engine rejected submit", "username", sess.Username, "error", err)
			return
		}
	}
}

// replyError pushes a decode-level error frame to the session. Engine-level
// failures are reported by the engine itself.
func (g *Gateway) replyError(sess *session.Session, code, message string) {
	frame, err := json.Marshal(chat.NewErrorFrame(code, message))
	if err != nil {
		return
	}
	_ = sess.Send(frame)
}

func (g *Gateway) logReadError(sess *session.Session, err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived):
		logger.L.Debug("client disconnected", "username", sess.Username, "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		logger.L.Debug("connection closed", "username", sess.Username, "error", err)
	default:
		logger.L.Warn("websocket read error", "username", sess.Username, "error", err)
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
