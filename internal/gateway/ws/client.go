package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victornm/blindtest/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Inbound is the frame a player sends to answer.
type Inbound struct {
	Text string `json:"text"`
}

// Client is one websocket connection bound to a chat channel.
type Client struct {
	ID        string
	Community domain.CommunityID
	Channel   domain.ChannelID
	User      domain.UserID

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("ws: read failed", "client", c.ID, "error", err)
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(p, &in); err != nil {
			slog.Warn("ws: drop malformed frame", "client", c.ID, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = c.hub.handler.HandleMessage(ctx, domain.MessageEvent{
			Community: c.Community,
			Channel:   c.Channel,
			Author:    c.User,
			Text:      in.Text,
		})
		cancel()
		if err != nil {
			slog.Error("ws: handle message failed", "client", c.ID, "channel", c.Channel, "error", err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case p, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
				slog.Warn("ws: write failed", "client", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
