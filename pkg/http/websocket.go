package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"manas-server/pkg/pipeline"
)

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is one connected assessment stream consumer. A client may
// filter on a single user via the user_id query parameter.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// AssessmentHub broadcasts completed turn results to WebSocket clients.
// Wire it to the engine with Listener().
type AssessmentHub struct {
	logger     *logrus.Logger
	clients    map[*wsClient]bool
	broadcast  chan *pipeline.TurnResult
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	mutex      sync.RWMutex
}

// NewAssessmentHub creates a new hub.
func NewAssessmentHub(logger *logrus.Logger) *AssessmentHub {
	return &AssessmentHub{
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan *pipeline.TurnResult, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

// Listener returns a pipeline listener feeding this hub. Slow consumers
// never block the pipeline; results are dropped when the buffer fills.
func (h *AssessmentHub) Listener() pipeline.ResultListener {
	return func(result *pipeline.TurnResult) {
		select {
		case h.broadcast <- result:
		default:
			h.logger.Warn("Assessment broadcast buffer full, dropping result")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *AssessmentHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run pumps registrations and broadcasts until the context is done.
func (h *AssessmentHub) Run(ctx context.Context) {
	h.logger.Info("Starting assessment WebSocket hub")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Shutting down assessment WebSocket hub")
			// Closing done unblocks any client goroutine still trying to
			// register or unregister once the loop stops serving.
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Info("Client connected to assessment stream")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()

		case result := <-h.broadcast:
			data, err := json.Marshal(result)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal turn result")
				continue
			}

			h.mutex.Lock()
			for client := range h.clients {
				if client.userID != "" && client.userID != result.UserID {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// ServeHTTP upgrades the connection and attaches the client to the hub.
func (h *AssessmentHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: r.URL.Query().Get("user_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *AssessmentHub) writePump(client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains and discards client messages so that control frames
// are processed and disconnects are noticed.
func (h *AssessmentHub) readPump(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
