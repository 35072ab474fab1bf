package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gigcredit/backend/internal/ws"
)

type NotificationFeed interface {
	ListByRecipient(ctx context.Context, role, recipientID string, limit int32) ([]ws.FeedEvent, error)
}

type NotificationHandler struct {
	feed NotificationFeed
}

func NewNotificationHandler(feed NotificationFeed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// List returns the caller's recent notifications, newest first. Covers what
// a client missed while its websocket was down.
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	items, err := h.feed.ListByRecipient(c.Request.Context(), c.GetString("user_role"), c.GetString("user_id"), int32(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, ev := range items {
		out = append(out, gin.H{
			"id":         ev.ID,
			"event":      ev.Event,
			"data":       ev.Payload,
			"created_at": ev.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
