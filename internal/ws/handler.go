// Package ws pushes companion events to connected browser tabs.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"ai-companion-demo/companion/internal/backend"
	"ai-companion-demo/companion/internal/events"
	"ai-companion-demo/companion/internal/session"
	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lithammer/shortuuid/v4"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Time a chat message sent over the socket may take, fallback included
	chatTimeout = 60 * time.Second
)

// Message is the frame exchanged with the browser
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Sessions resolves a user's session controller
type Sessions interface {
	Get(userID string) *session.Controller
}

// Client is one websocket connection
type Client struct {
	ID     string
	UserID string
	TabID  string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	token string
}

// Hub tracks connected clients and routes events to them
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   Sessions
	upgrader   websocket.Upgrader
	log        *logger.Logger
	mu         sync.Mutex
	done       chan struct{}
}

// NewHub creates a hub. sessions may be nil, in which case chat frames are rejected.
func NewHub(sessions Sessions, allowedOrigins []string, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin:      originChecker(allowedOrigins),
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		log:  log.WithComponent("ws"),
		done: make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run delivers events to matching clients until ctx is done or in closes
func (h *Hub) Run(ctx context.Context, in <-chan events.Event) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("Client registered", "client_id", client.ID, "user_id", client.UserID, "tab_id", client.TabID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("Client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case ev, ok := <-in:
			if !ok {
				h.closeAll()
				return
			}
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev events.Event) {
	frame, err := json.Marshal(Message{Type: string(ev.Type), Content: ev.Payload})
	if err != nil {
		h.log.LogError(err, "Failed to encode event", "type", ev.Type)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(ev.Key) {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			close(client.Send)
			delete(h.clients, client)
			h.log.Warn("Client removed due to blocked channel", "client_id", client.ID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
		delete(h.clients, client)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// wants reports whether an event keyed by key belongs to this client. Session
// events are keyed by user, wizard events by user and tab.
func (c *Client) wants(key string) bool {
	if key == c.UserID {
		return true
	}
	user, tab, ok := strings.Cut(key, ":")
	return ok && user == c.UserID && tab == c.TabID
}

// ReadPump reads frames from the browser until the connection drops
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("Unexpected websocket close", "client_id", c.ID, "error", err)
			}
			break
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.sendError("malformed frame")
			continue
		}

		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message Message) {
	switch message.Type {
	case "ping":
		c.sendMessage("pong", nil)
	case "chat":
		c.handleChatMessage(message)
	default:
		c.sendError("unknown message type " + message.Type)
	}
}

// handleChatMessage runs a send in the background. Its progress reaches the
// client through the event bus like any other session change.
func (c *Client) handleChatMessage(message Message) {
	if c.Hub.sessions == nil {
		c.sendError("chat is not available on this socket")
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(message.Content, &body); err != nil {
		c.sendError("malformed chat content")
		return
	}

	ctrl := c.Hub.sessions.Get(c.UserID)
	go func() {
		ctx, cancel := context.WithTimeout(backend.ContextWithToken(context.Background(), c.token), chatTimeout)
		defer cancel()
		if _, err := ctrl.SendMessage(ctx, body.Content); err != nil {
			c.sendError(err.Error())
		}
	}()
}

func (c *Client) sendMessage(messageType string, content any) {
	var raw json.RawMessage
	if content != nil {
		data, err := json.Marshal(content)
		if err != nil {
			c.Hub.log.LogError(err, "Failed to encode frame", "type", messageType)
			return
		}
		raw = data
	}

	frame, err := json.Marshal(Message{Type: messageType, Content: raw})
	if err != nil {
		return
	}

	defer func() {
		// Send may already be closed by the hub
		_ = recover()
	}()
	select {
	case c.Send <- frame:
	default:
		c.Hub.log.Warn("Dropping frame for slow client", "client_id", c.ID, "type", messageType)
	}
}

func (c *Client) sendError(text string) {
	c.sendMessage("error", map[string]string{"message": text})
}

// WritePump writes queued frames and keepalive pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Queued frames go out as separate websocket messages
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an authenticated request and registers the client
func ServeWs(hub *Hub, c *gin.Context) {
	userID := middleware.GetUser(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	clientID := c.Query("clientId")
	if clientID == "" {
		clientID = shortuuid.New()
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		ID:     clientID,
		UserID: userID,
		TabID:  middleware.TabID(c),
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Hub:    hub,
		token:  middleware.GetToken(c),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}
	hub.log.Info("Websocket connected", "client_id", clientID, "user_id", userID, "tab_id", client.TabID)

	go client.WritePump()
	go client.ReadPump()
}
