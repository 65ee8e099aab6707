package message

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"CardArena/logger"
	"CardArena/service/relay"
	"CardArena/tools/errs"
)

// Queue is the enqueue side of the pending-message store.
type Queue interface {
	Enqueue(ctx context.Context, senderCode, recipientCode string, payload map[string]any) error
}

type Handler struct {
	queue Queue
}

func NewHandler(queue Queue) *Handler {
	return &Handler{queue: queue}
}

type enqueueReq struct {
	SenderUserCode    string `json:"sender_user_code" binding:"required"`
	RecipientUserCode string `json:"recipient_user_code" binding:"required"`
	SenderUserID      int64  `json:"sender_user_id"`
	RecipientUserID   int64  `json:"recipient_user_id"`
	MessageText       string `json:"message_text" binding:"required"`
}

// HandlerEnqueue is the HTTP persistence path's hand-off: after the chat
// row is written, the message lands here and the drain loop pushes it to
// whoever is online. Guarded by the service-token middleware.
func (h *Handler) HandlerEnqueue(c *gin.Context) {
	var req enqueueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}

	payload := map[string]any{
		"type":              relay.TypeChatMessage,
		"sender_user_id":    req.SenderUserID,
		"recipient_user_id": req.RecipientUserID,
		"message_text":      req.MessageText,
		"timestamp":         time.Now().Unix(),
	}
	err := h.queue.Enqueue(c.Request.Context(), req.SenderUserCode, req.RecipientUserCode, payload)
	if err != nil {
		logger.Errorf("[message] enqueue sender=%s recipient=%s err=%v",
			req.SenderUserCode, req.RecipientUserCode, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}
