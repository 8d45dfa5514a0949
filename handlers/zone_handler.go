package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

type ZoneHandler struct {
	registry repository.Registry
	monitor  *services.GeofenceMonitor
	logger   *zap.Logger
}

func NewZoneHandler(registry repository.Registry, monitor *services.GeofenceMonitor, logger *zap.Logger) *ZoneHandler {
	return &ZoneHandler{registry: registry, monitor: monitor, logger: logger}
}

func (h *ZoneHandler) GetZones(c *gin.Context) {
	zones, err := h.registry.ListZones(c.Request.Context())
	respond(c, h.logger, http.StatusOK, gin.H{"zones": zones}, err)
}

func (h *ZoneHandler) GetZone(c *gin.Context) {
	zone, err := h.registry.GetZone(c.Request.Context(), c.Param("id"))
	respond(c, h.logger, http.StatusOK, gin.H{"zone": zone}, err)
}

func (h *ZoneHandler) CreateZone(c *gin.Context) {
	var req models.ZoneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	zone, err := h.registry.CreateZone(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Zone created", zap.String("zone_id", zone.ID), zap.String("type", string(zone.Type)))
	c.JSON(http.StatusCreated, gin.H{"zone": zone})
}

func (h *ZoneHandler) UpdateZone(c *gin.Context) {
	var req models.ZonePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	zone, err := h.registry.UpdateZone(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zone": zone})
}

func (h *ZoneHandler) DeleteZone(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.DeleteZone(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Zone deleted", zap.String("zone_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Zone deleted successfully"})
}

func (h *ZoneHandler) CheckPosition(c *gin.Context) {
	var req services.PositionReport
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.monitor.Check(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
