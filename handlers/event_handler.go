package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"guardforce-cctv/be/middleware"
	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

type EventHandler struct {
	registry   repository.Registry
	cctv       *services.CCTVService
	dispatcher *services.Dispatcher
	hub        *services.Hub
	logger     *zap.Logger
}

func NewEventHandler(registry repository.Registry, cctv *services.CCTVService, dispatcher *services.Dispatcher, hub *services.Hub, logger *zap.Logger) *EventHandler {
	return &EventHandler{registry: registry, cctv: cctv, dispatcher: dispatcher, hub: hub, logger: logger}
}

// ReportEventRequest is an externally detected event, e.g. from an NVR
// analytics hook or a peer instance. camera_id is empty for breaches of
// zones without cameras.
type ReportEventRequest struct {
	CameraID  string                `json:"camera_id"`
	ZoneID    *string               `json:"zone_id"`
	EventType models.EventType      `json:"event_type" binding:"required"`
	Severity  models.Severity       `json:"severity" binding:"required"`
	Metadata  *models.EventMetadata `json:"metadata"`
}

func (h *EventHandler) GetEvents(c *gin.Context) {
	filter := repository.EventFilter{CameraID: c.Query("camera_id")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		filter.Limit = n
	}
	if v := c.Query("unacknowledged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unacknowledged must be a boolean"})
			return
		}
		filter.UnacknowledgedOnly = b
	}

	events, err := h.registry.ListEvents(c.Request.Context(), filter)
	respond(c, h.logger, http.StatusOK, gin.H{"events": events}, err)
}

func (h *EventHandler) AcknowledgeEvent(c *gin.Context) {
	event, err := h.cctv.AcknowledgeEvent(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	respond(c, h.logger, http.StatusOK, gin.H{"event": event}, err)
}

func (h *EventHandler) ReportEvent(c *gin.Context) {
	var req ReportEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	event := models.CCTVEvent{
		EventType: req.EventType,
		Severity:  req.Severity,
		Metadata:  req.Metadata,
	}
	if req.CameraID != "" {
		camera, err := h.registry.GetCamera(ctx, req.CameraID)
		if err != nil && !repository.IsStale(err) {
			respondError(c, h.logger, err)
			return
		}
		event.CameraID = camera.ID
		event.CameraName = camera.Name
	}
	if req.ZoneID != nil {
		zone, err := h.registry.GetZone(ctx, *req.ZoneID)
		if err != nil && !repository.IsStale(err) {
			respondError(c, h.logger, err)
			return
		}
		event.ZoneID = &zone.ID
		event.ZoneName = &zone.Name
	}

	event, err := h.dispatcher.Publish(ctx, event)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// StreamEvents upgrades to a websocket that receives this connection's own
// subscription cycle, published events and hub alerts.
func (h *EventHandler) StreamEvents(c *gin.Context) {
	var header http.Header
	if p := c.GetHeader("Sec-WebSocket-Protocol"); p != "" {
		header = http.Header{"Sec-WebSocket-Protocol": {strings.TrimSpace(strings.Split(p, ",")[0])}}
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := services.NewClient(conn, h.logger)
	h.hub.Register(client)
	unsubscribe := h.dispatcher.Subscribe(func(e models.CCTVEvent) {
		if !client.SendEvent(services.MessageEvent, e) {
			h.logger.Debug("Event not queued for client", zap.String("event_id", e.ID))
		}
	})
	h.logger.Info("Event stream opened", zap.String("actor", middleware.Actor(c)))

	go client.WritePump()
	client.ReadPump()

	unsubscribe()
	h.hub.Unregister(client)
	h.logger.Info("Event stream closed", zap.String("actor", middleware.Actor(c)))
}
