package api

import (
	"net/http"

	"github.com/beligro/smart-carwash-sub000/internal/usecase"

	"github.com/gin-gonic/gin"
)

type QueueHandler struct {
	queue *usecase.QueueService
}

func NewQueueHandler(queue *usecase.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// @Summary Queue status
// @Description Poll snapshot of every box and queue; cached briefly
// @Tags queue
// @Produce json
// @Success 200 {object} readmodel.QueueStatusRM
// @Router /queue/status [get]
func (h *QueueHandler) Status(c *gin.Context) {
	snapshot, err := h.queue.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
