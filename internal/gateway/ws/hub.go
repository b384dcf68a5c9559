// Package ws is a websocket chat gateway. Players connect to a channel, their
// frames become chat messages and game notifications are pushed back to them.
//
// With Grants configured, a player proves who they are with a grant issued by
// the operator, passed as ?token=. Without it the hub trusts the ?user= query
// parameter, so it must only be exposed to trusted clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// MessageHandler consumes inbound chat messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, m domain.MessageEvent) error
}

type Config struct {
	Handler MessageHandler
	// Grants verifies player identities, optional.
	Grants *Grants
}

// Hub tracks the clients of every channel.
type Hub struct {
	handler MessageHandler
	grants  *Grants

	mu      sync.RWMutex
	clients map[domain.ChannelID]map[*Client]struct{}
	stopped bool
}

func NewHub(c Config) *Hub {
	return &Hub{
		handler: c.Handler,
		grants:  c.Grants,
		clients: make(map[domain.ChannelID]map[*Client]struct{}),
	}
}

// ServeWS upgrades /ws/:community/:channel?token=GRANT, or ?user=ID when the
// hub has no grants.
func (h *Hub) ServeWS(c *gin.Context) {
	var (
		community = domain.CommunityID(c.Param("community"))
		channel   = domain.ChannelID(c.Param("channel"))
		user      = domain.UserID(c.Query("user"))
	)

	if h.grants != nil && community != "" && channel != "" {
		u, err := h.grants.Verify(c.Query("token"), community, channel)
		if err != nil {
			slog.WarnContext(c, "ws: rejected player grant", "community", community, "channel", channel, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"message": "a valid player grant is required"})
			return
		}
		user = u
	}

	if community == "" || channel == "" || user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "community, channel and user are required"})
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "cannot allocate client id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c, "ws: upgrade failed", "error", err)
		return
	}

	cl := &Client{
		ID:        id.String(),
		Community: community,
		Channel:   channel,
		User:      user,
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
	if !h.register(cl) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

// Notify pushes the rendered notification to every client of channel. Clients
// that cannot keep up are disconnected.
func (h *Hub) Notify(_ context.Context, channel domain.ChannelID, n domain.Notification) error {
	p, err := json.Marshal(notify.Render(channel, n))
	if err != nil {
		return fmt.Errorf("ws: marshal notification: %w", err)
	}

	var slow []*Client

	h.mu.RLock()
	for c := range h.clients[channel] {
		select {
		case c.send <- p:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: client too slow, disconnecting", "client", c.ID, "channel", channel)
		h.unregister(c)
	}

	return nil
}

// Clients returns the number of clients connected to channel.
func (h *Hub) Clients(channel domain.ChannelID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[channel])
}

// Stop disconnects every client and refuses new ones.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for channel, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, channel)
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}

	if h.clients[c.Channel] == nil {
		h.clients[c.Channel] = make(map[*Client]struct{})
	}
	h.clients[c.Channel][c] = struct{}{}

	slog.Info("ws: client registered", "client", c.ID, "community", c.Community, "channel", c.Channel, "user", c.User)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[c.Channel]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}

	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.Channel)
	}

	slog.Info("ws: client unregistered", "client", c.ID, "channel", c.Channel)
}
