package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/repository"
	"go.uber.org/zap"
)

// MessageHandler sends messages and reconstructs per-user conversation views.
type MessageHandler struct {
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewMessageHandler(messages repository.MessageRepository, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	FromUserID  int64   `json:"fromUserId" binding:"required"`
	ToUserIDs   []int64 `json:"toUserIds" binding:"required,min=1"`
	Content     string  `json:"content" binding:"required"`
	IsBroadcast bool    `json:"isBroadcast"`
}

// Send handles POST /v1/messages
//
// One message row plus one recipient link per listed id, committed as a
// unit by the store.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), req.FromUserID, req.ToUserIDs, req.Content, req.IsBroadcast)
	if err != nil {
		h.logger.Error("failed to send message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "success": true})
}

// List handles GET /v1/messages?userId=N
//
// The store hands back one row per (message, recipient) pair; the collapse
// below turns that stream into one entry per message.
func (h *MessageHandler) List(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID required"})
		return
	}

	rows, err := h.messages.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, collapseConversation(rows))
}

// collapseConversation folds the ordered fan-out stream into one entry per
// distinct message id. A message sent to three people arrives as three rows
// differing only in ToUserID; the first row seen for a message id creates
// the entry and fixes its position, every row appends its recipient to `to`.
// Because the rows arrive in ascending creation order, entries come out in
// overall chronological order in a single pass — no second sort needed.
func collapseConversation(rows []models.ConversationRow) []models.ConversationEntry {
	entries := make([]models.ConversationEntry, 0, len(rows))
	index := make(map[int64]int, len(rows))

	for _, row := range rows {
		i, seen := index[row.MessageID]
		if !seen {
			entries = append(entries, models.ConversationEntry{
				ID:           row.MessageID,
				FromUserID:   row.FromUserID,
				Content:      row.Content,
				IsBroadcast:  row.IsBroadcast,
				Timestamp:    row.CreatedAt,
				FromUserName: senderName(row),
				To:           make([]int64, 0, 1),
			})
			i = len(entries) - 1
			index[row.MessageID] = i
		}
		entries[i].To = append(entries[i].To, row.ToUserID)
	}

	return entries
}

// senderName prefers the author's display name and falls back to the first
// name. Never the email — the directory, not the address, is the identity
// the UI shows.
func senderName(row models.ConversationRow) string {
	if row.DisplayName != nil && *row.DisplayName != "" {
		return *row.DisplayName
	}
	return row.FirstName
}
