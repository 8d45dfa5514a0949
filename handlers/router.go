package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/middleware"
	"guardforce-cctv/be/models"
)

type Handlers struct {
	Auth      *AuthHandler
	Camera    *CameraHandler
	Zone      *ZoneHandler
	Event     *EventHandler
	Recording *RecordingHandler
	System    *SystemHandler
}

func SetupRouter(cfg *config.Config, h Handlers, logger *zap.Logger) *gin.Engine {
	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))

	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if origin == "" {
				return true
			}
			return origin == "http://localhost:8080" ||
				origin == "http://localhost:5173" ||
				origin == "http://localhost:3000" ||
				origin == "http://127.0.0.1:8080" ||
				origin == "http://127.0.0.1:5173" ||
				origin == "http://127.0.0.1:3000"
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	router.GET("/health", h.System.Liveness)
	router.Static(cfg.Snapshot.PublicPath, cfg.Snapshot.OutputPath)

	api := router.Group("/api/v1")
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret, logger))
	{
		protected.GET("/auth/me", h.Auth.GetMe)
		protected.POST("/auth/logout", h.Auth.Logout)
	}

	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)
	operators := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor, models.RoleCCTVOperator)

	cctv := protected.Group("/cctv")

	cameras := cctv.Group("/cameras")
	{
		cameras.GET("", h.Camera.GetCameras)
		cameras.GET("/:id", h.Camera.GetCamera)
		cameras.POST("", editors, h.Camera.CreateCamera)
		cameras.PUT("/:id", editors, h.Camera.UpdateCamera)
		cameras.DELETE("/:id", editors, h.Camera.DeleteCamera)
		cameras.GET("/:id/stream", h.Camera.GetStreamURL)
		cameras.POST("/:id/ptz", operators, h.Camera.ControlPTZ)
		cameras.POST("/:id/screenshot", operators, h.Camera.CaptureScreenshot)
		cameras.PUT("/:id/motion-detection", operators, h.Camera.SetMotionDetection)
	}

	geofence := cctv.Group("/geofence")
	{
		geofence.GET("/zones", h.Zone.GetZones)
		geofence.GET("/zones/:id", h.Zone.GetZone)
		geofence.POST("/zones", editors, h.Zone.CreateZone)
		geofence.PUT("/zones/:id", editors, h.Zone.UpdateZone)
		geofence.DELETE("/zones/:id", editors, h.Zone.DeleteZone)
		geofence.POST("/check", h.Zone.CheckPosition)
	}

	events := cctv.Group("/events")
	{
		events.GET("", h.Event.GetEvents)
		events.POST("", operators, h.Event.ReportEvent)
		events.GET("/stream", h.Event.StreamEvents)
		events.PUT("/:id/acknowledge", operators, h.Event.AcknowledgeEvent)
	}

	recordings := cctv.Group("/recordings")
	{
		recordings.GET("", h.Recording.GetRecordings)
		recordings.POST("/start", operators, h.Recording.StartRecording)
		recordings.PUT("/:id/stop", operators, h.Recording.StopRecording)
		recordings.PUT("/:id/fail", operators, h.Recording.FailRecording)
	}

	system := cctv.Group("/system")
	{
		system.GET("/health", h.System.GetSystemHealth)
		system.GET("/streams", h.System.GetStreamHealth)
	}

	return router
}
