package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naomedical/bilingual-chat/internal/realtime"
)

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Nao Medical Translation API is running"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.Hub.Count(),
	})
}

func (h *Handler) WebSocket(c *gin.Context) {
	h.Hub.ServeWS(c.Writer, c.Request, realtime.WSOptions{
		PingInterval: h.Cfg.WSPingInterval,
		ReadTimeout:  h.Cfg.WSReadTimeout,
	})
}
