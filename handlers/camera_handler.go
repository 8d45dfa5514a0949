package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

type CameraHandler struct {
	registry repository.Registry
	cctv     *services.CCTVService
	logger   *zap.Logger
}

func NewCameraHandler(registry repository.Registry, cctv *services.CCTVService, logger *zap.Logger) *CameraHandler {
	return &CameraHandler{registry: registry, cctv: cctv, logger: logger}
}

type PTZRequest struct {
	Command models.PTZCommand `json:"command" binding:"required"`
	Value   *float64          `json:"value"`
}

type MotionDetectionRequest struct {
	Enabled     *bool `json:"enabled" binding:"required"`
	Sensitivity *int  `json:"sensitivity"`
}

func (h *CameraHandler) GetCameras(c *gin.Context) {
	cameras, err := h.registry.ListCameras(c.Request.Context())
	respond(c, h.logger, http.StatusOK, gin.H{"cameras": cameras}, err)
}

func (h *CameraHandler) GetCamera(c *gin.Context) {
	camera, err := h.registry.GetCamera(c.Request.Context(), c.Param("id"))
	respond(c, h.logger, http.StatusOK, gin.H{"camera": camera}, err)
}

func (h *CameraHandler) CreateCamera(c *gin.Context) {
	var req models.CameraInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	camera, err := h.registry.CreateCamera(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Camera created", zap.String("camera_id", camera.ID), zap.String("name", camera.Name))
	c.JSON(http.StatusCreated, gin.H{"camera": camera})
}

func (h *CameraHandler) UpdateCamera(c *gin.Context) {
	var req models.CameraPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	camera, err := h.registry.UpdateCamera(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera})
}

func (h *CameraHandler) DeleteCamera(c *gin.Context) {
	id := c.Param("id")
	if err := h.cctv.DeleteCamera(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Camera deleted successfully"})
}

func (h *CameraHandler) ControlPTZ(c *gin.Context) {
	var req PTZRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.cctv.ControlPTZ(c.Request.Context(), c.Param("id"), req.Command, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "PTZ command sent", "command": req.Command})
}

func (h *CameraHandler) CaptureScreenshot(c *gin.Context) {
	url, err := h.cctv.CaptureScreenshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"screenshot_url": url})
}

func (h *CameraHandler) SetMotionDetection(c *gin.Context) {
	var req MotionDetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	camera, err := h.cctv.SetMotionDetection(c.Request.Context(), c.Param("id"), *req.Enabled, req.Sensitivity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera})
}

func (h *CameraHandler) GetStreamURL(c *gin.Context) {
	url, err := h.cctv.StreamURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream_url": url})
}
