package services

import (
	"context"

	"go.uber.org/zap"

	"guardforce-cctv/be/models"
)

// LogAlerter writes critical events to the log.
type LogAlerter struct {
	logger *zap.Logger
}

func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.Named("alert")}
}

func (a *LogAlerter) Alert(_ context.Context, event models.CCTVEvent) {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.EventType)),
		zap.String("camera_id", event.CameraID),
		zap.String("camera_name", event.CameraName),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.ZoneName != nil {
		fields = append(fields, zap.String("zone_name", *event.ZoneName))
	}
	a.logger.Warn("Critical CCTV event", fields...)
}
