package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

type RecordingHandler struct {
	registry repository.Registry
	cctv     *services.CCTVService
	logger   *zap.Logger
}

func NewRecordingHandler(registry repository.Registry, cctv *services.CCTVService, logger *zap.Logger) *RecordingHandler {
	return &RecordingHandler{registry: registry, cctv: cctv, logger: logger}
}

type FailRecordingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *RecordingHandler) GetRecordings(c *gin.Context) {
	recordings, err := h.registry.ListRecordings(c.Request.Context(), c.Query("camera_id"))
	respond(c, h.logger, http.StatusOK, gin.H{"recordings": recordings}, err)
}

func (h *RecordingHandler) StartRecording(c *gin.Context) {
	var req models.StartRecordingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	session, err := h.cctv.StartRecording(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recording": session})
}

func (h *RecordingHandler) StopRecording(c *gin.Context) {
	session, stopped, err := h.cctv.StopRecording(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": session, "stopped": stopped})
}

func (h *RecordingHandler) FailRecording(c *gin.Context) {
	var req FailRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	session, err := h.cctv.FailRecording(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": session})
}
