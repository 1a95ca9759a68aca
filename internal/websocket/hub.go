package websocket

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"orderdesk/internal/logger"
	"orderdesk/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a single connected feed consumer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the live order feed out to connected clients. Every order-path
// change broadcasts the full replaced snapshot plus derived stats; a client
// connecting late immediately receives the latest payload.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.Mutex
	latest []byte
}

// NewHub initializes the feed hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 8),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Publish queues one feed payload for all connected clients.
func (h *Hub) Publish(payload []byte) {
	h.mu.Lock()
	h.latest = payload
	h.mu.Unlock()
	h.broadcast <- payload
}

// Run is the dispatch loop. Call it in its own goroutine.
func (h *Hub) Run() {
	log := logger.WithComponent("ws")
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.mu.Lock()
			latest := h.latest
			h.mu.Unlock()
			if latest != nil {
				client.send <- latest
			}
			log.Debug().Int("clients", len(h.clients)).Msg("feed client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Debug().Int("clients", len(h.clients)).Msg("feed client disconnected")
			}
		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// writePump drains queued payloads to the connection.
func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump keeps the connection alive and detects client hangups.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// ServeWs authenticates the token query parameter and attaches the client.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	log := logger.WithComponent("ws")

	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		log.Warn().Err(err).Msg("feed connection rejected: invalid token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	role, _ := claims["role"].(string)
	if role != model.RoleAdmin && role != model.RoleUser {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
