package handlers

import (
	"net/http"
	"sync"
	"time"

	"lingo-core/internal/backend"
	"lingo-core/internal/middleware"
	"lingo-core/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams the friend feed over WebSocket connections
type WebSocketHandler struct {
	service *backend.Service
	hub     *Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(service *backend.Service, hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{service: service, hub: hub}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r.Header.Get("Authorization"))
	}

	userID, err := middleware.ValidateWebSocketToken(token, h.service.Tokens())
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.Register(userID, conn)
	defer h.hub.Unregister(client)

	unsubscribe, err := h.service.SubscribeFeed(r.Context(), userID, func(activity models.FriendActivity) {
		if err := client.Send(activity); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to deliver feed activity")
		}
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to subscribe to feed")
		return
	}
	defer unsubscribe()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	// the feed is server to client only; reading drains control frames and detects close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			return
		}
	}
}

// Client is a single WebSocket connection
type Client struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

// Send writes v as a JSON text frame
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub tracks open WebSocket connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register tracks a new connection for a user
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	client := &Client{userID: userID, conn: conn}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	h.mu.Unlock()

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
	return client
}

// Unregister closes and forgets a connection
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.userID]; ok {
		if _, ok := conns[client]; ok {
			client.conn.Close()
			delete(conns, client)
			log.Info().Str("user_id", client.userID).Msg("WebSocket connection unregistered")
		}
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

// IsOnline checks if a user has an open connection
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// OnlineUsers returns the ids of users with at least one open connection
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// Close closes every open connection
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for client := range conns {
			client.mu.Lock()
			client.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			client.mu.Unlock()
			client.conn.Close()
		}
		delete(h.clients, userID)
	}
}
