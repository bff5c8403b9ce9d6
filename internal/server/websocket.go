package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/presence"
	"github.com/taskfolio/realtime/internal/rpc"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

type WebSocketServer struct {
	logger   *zap.Logger
	upgrader *websocket.Upgrader

	hub             *broadcaster.Hub
	presenceManager *presence.Manager
	router          *Router
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	hub *broadcaster.Hub,
	presenceManager *presence.Manager,
	router *Router,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		hub,
		presenceManager,
		router,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/websocket", s.serve)
}

func (s *WebSocketServer) serve(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}

	connectionId := gonanoid.Must()
	connection := broadcaster.NewConnection(connectionId, sendBufferSize)

	logger := s.logger.With(zap.String("connectionId", connectionId))
	logger.Info("websocket connection established")

	s.hub.Register(connection)

	go s.writePump(socket, connection)
	s.readLoop(r, socket, connection, logger)

	// The transport serializes lifecycle events per connection: cleanup runs
	// here, after the read loop has returned, so a join can never race its
	// own disconnect.
	s.hub.Unregister(connectionId)
	s.presenceManager.Disconnect(connectionId)

	logger.Info("websocket connection closed")
}

func (s *WebSocketServer) readLoop(r *http.Request, socket *websocket.Conn, connection *broadcaster.Connection, logger *zap.Logger) {
	defer socket.Close()

	socket.SetReadLimit(maxMessageSize)
	socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := broadcaster.WithConnection(r.Context(), connection)

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}

			return
		}

		var request rpc.Request
		if err := json.Unmarshal(data, &request); err != nil {
			logger.Warn("invalid request frame, closing connection", zap.Error(err))

			return
		}

		response := s.router.RouteRequest(ctx, request)
		if response == nil {
			continue
		}

		frame, err := json.Marshal(response)
		if err != nil {
			logger.Error("failed to encode response", zap.Error(err))

			continue
		}

		if !connection.Enqueue(frame) {
			return
		}
	}
}

// writePump is the sole writer on the socket: responses and broadcast events
// share one outbound queue, so their relative order is preserved.
func (s *WebSocketServer) writePump(socket *websocket.Conn, connection *broadcaster.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer socket.Close()

	for {
		select {
		case frame := <-connection.Outbound():
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-connection.Closed():
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			socket.WriteMessage(websocket.CloseMessage, []byte{})

			return
		case <-ticker.C:
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
