package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleWebSocket upgrades the connection and pins the client to its own
// notification channel. The channel is derived from the verified claims, so
// a caller can never listen on another user's feed.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	role := c.GetString("user_role")
	userID := c.GetString("user_id")
	if role == "" || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	channel := Channel(role, userID)

	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn)
		h.hub.Subscribe(channel, client)
		go h.writer(client)
		h.reader(client)
	}).ServeHTTP(c.Writer, c.Request)
}

// Channel names the per-user feed topic, e.g. "lender:u_42".
func Channel(role, userID string) string {
	return role + ":" + userID
}

func (h *Handler) reader(client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.shutdown()
		_ = client.conn.Close()
	}()

	// Inbound traffic is ignored; the read loop only detects disconnects.
	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}
