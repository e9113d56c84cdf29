package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voicenote-server-go/internal/platform/logging"
)

// HandlerBuilder creates a session handler for an upgraded websocket
// connection. Returning an error rejects the connection; this is where the
// transport owner authenticates the client.
type HandlerBuilder func(conn *Connection, req *http.Request) (SessionHandler, error)

// Router is responsible for upgrading HTTP connections to websocket sessions.
type Router struct {
	hub    *Hub
	logger *logging.Logger

	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
	builder          atomic.Value // HandlerBuilder
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	upgrader := &websocket.Upgrader{
		CheckOrigin: opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
	}
}

// SetHandlerBuilder registers the handler builder invoked after a successful upgrade.
func (r *Router) SetHandlerBuilder(builder HandlerBuilder) {
	r.builder.Store(builder)
}

// Handle upgrades the HTTP connection and launches a new websocket session.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	value := r.builder.Load()
	if value == nil {
		http.Error(w, "websocket handler not ready", http.StatusServiceUnavailable)
		return
	}
	builder := value.(HandlerBuilder)

	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	req = req.WithContext(handshakeCtx)

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		if r.logger != nil {
			r.logger.ErrorTag("WebSocket", "handshake failed: %v", err)
		}
		return
	}

	clientID := resolveClientID(req, conn)
	wsConn := NewConnection(clientID, conn)

	handler, err := builder(wsConn, req)
	if err != nil || handler == nil {
		if r.logger != nil {
			r.logger.WarnTag("WebSocket", "connection %s rejected: %v", clientID, err)
		}
		_ = wsConn.Close()
		return
	}

	session := NewSession(context.WithoutCancel(handshakeCtx), handler, wsConn, r.logger)
	r.hub.Register(session)
	if r.logger != nil {
		r.logger.InfoTag("WebSocket", "connection %s established", clientID)
	}

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		if runErr != nil && r.logger != nil {
			r.logger.WarnTag("WebSocket", "session %s ended abnormally: %v", session.ID(), runErr)
		}
	})
}

func resolveClientID(req *http.Request, conn *websocket.Conn) string {
	clientID := req.Header.Get("Client-Id")
	if clientID == "" {
		clientID = req.URL.Query().Get("client-id")
	}
	if clientID == "" {
		clientID = fmt.Sprintf("%p", conn)
	}
	return clientID
}
