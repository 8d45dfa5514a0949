package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

type SystemHandler struct {
	cctv       *services.CCTVService
	dispatcher *services.Dispatcher
	hub        *services.Hub
	logger     *zap.Logger
}

func NewSystemHandler(cctv *services.CCTVService, dispatcher *services.Dispatcher, hub *services.Hub, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{cctv: cctv, dispatcher: dispatcher, hub: hub, logger: logger}
}

type healthResponse struct {
	models.SystemHealth
	Warning string `json:"warning,omitempty"`
}

func (h *SystemHandler) GetSystemHealth(c *gin.Context) {
	health, err := h.cctv.SystemHealth(c.Request.Context())
	if err != nil && !repository.IsStale(err) {
		respondError(c, h.logger, err)
		return
	}
	resp := healthResponse{SystemHealth: health}
	if err != nil {
		resp.Warning = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SystemHandler) GetStreamHealth(c *gin.Context) {
	streams, err := h.cctv.StreamHealth(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

// Liveness is the public /health probe.
func (h *SystemHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"subscribers": h.dispatcher.SubscriberCount(),
		"clients":     h.hub.ClientCount(),
	})
}
