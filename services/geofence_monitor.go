package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"guardforce-cctv/be/geofence"
	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

// PositionReport is a tracked subject's location fix, typically a guard's
// phone or a vehicle tracker.
type PositionReport struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	SubjectID   string  `json:"subject_id,omitempty"`
	SubjectName string  `json:"subject_name,omitempty"`
}

type ZoneMatch struct {
	ZoneID   string              `json:"zone_id"`
	ZoneName string              `json:"zone_name"`
	ZoneType models.ZoneType     `json:"zone_type"`
	Priority models.ZonePriority `json:"priority"`
	Breach   bool                `json:"breach"`
}

type CheckResult struct {
	Matches []ZoneMatch        `json:"matches"`
	Events  []models.CCTVEvent `json:"events"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.CCTVEvent) (models.CCTVEvent, error)
}

type Recorder interface {
	StartRecording(ctx context.Context, in models.StartRecordingInput) (models.RecordingSession, error)
}

// GeofenceMonitor turns position reports into zone breach events.
type GeofenceMonitor struct {
	registry  repository.Registry
	publisher EventPublisher
	recorder  Recorder
	logger    *zap.Logger
}

func NewGeofenceMonitor(registry repository.Registry, publisher EventPublisher, recorder Recorder, logger *zap.Logger) *GeofenceMonitor {
	return &GeofenceMonitor{
		registry:  registry,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.Named("geofence"),
	}
}

func breachZone(t models.ZoneType) bool {
	return t == models.ZoneRestricted || t == models.ZoneAlert || t == models.ZoneEmergency
}

func breachSeverity(z models.GeofenceZone) models.Severity {
	if z.Type == models.ZoneEmergency {
		return models.SeverityCritical
	}
	switch z.Priority {
	case models.PriorityCritical, models.PriorityHigh:
		return models.SeverityCritical
	case models.PriorityMedium:
		return models.SeverityWarning
	}
	return models.SeverityInfo
}

// Check evaluates report against every active zone. Monitoring zones are
// reported as matches without raising an event.
func (m *GeofenceMonitor) Check(ctx context.Context, report PositionReport) (CheckResult, error) {
	point := models.LatLng{Lat: report.Latitude, Lng: report.Longitude}
	if report.Latitude < -90 || report.Latitude > 90 || report.Longitude < -180 || report.Longitude > 180 {
		return CheckResult{}, fmt.Errorf("%w: position %v out of range", repository.ErrInvalidInput, point)
	}

	zones, err := m.registry.ListZones(ctx)
	if err != nil {
		if !repository.IsStale(err) {
			return CheckResult{}, err
		}
		m.logger.Warn("Checking position against stale zones", zap.Error(err))
	}

	result := CheckResult{Matches: []ZoneMatch{}, Events: []models.CCTVEvent{}}
	for _, zone := range geofence.ZonesContaining(point, zones, true) {
		breach := breachZone(zone.Type)
		result.Matches = append(result.Matches, ZoneMatch{
			ZoneID:   zone.ID,
			ZoneName: zone.Name,
			ZoneType: zone.Type,
			Priority: zone.Priority,
			Breach:   breach,
		})
		if !breach {
			continue
		}

		cameras := m.zoneCameras(ctx, zone)
		event, err := m.publisher.Publish(ctx, m.breachEvent(zone, point, report, cameras))
		if err != nil {
			return result, fmt.Errorf("publish breach of zone %q: %w", zone.ID, err)
		}
		result.Events = append(result.Events, event)
		m.logger.Info("Zone breach",
			zap.String("zone_id", zone.ID),
			zap.String("subject_id", report.SubjectID),
			zap.String("event_id", event.ID))

		if zone.AutoRecording {
			m.startRecordings(ctx, zone, cameras)
		}
	}
	return result, nil
}

func (m *GeofenceMonitor) zoneCameras(ctx context.Context, zone models.GeofenceZone) []models.Camera {
	cameras := make([]models.Camera, 0, len(zone.CameraIDs))
	for _, id := range zone.CameraIDs {
		c, err := m.registry.GetCamera(ctx, id)
		if err != nil && !repository.IsStale(err) {
			m.logger.Warn("Zone camera unavailable", zap.String("zone_id", zone.ID), zap.String("camera_id", id), zap.Error(err))
			continue
		}
		cameras = append(cameras, c)
	}
	return cameras
}

func (m *GeofenceMonitor) breachEvent(zone models.GeofenceZone, point models.LatLng, report PositionReport, cameras []models.Camera) models.CCTVEvent {
	confidence := 1.0
	zoneID, zoneName := zone.ID, zone.Name
	event := models.CCTVEvent{
		ZoneID:    &zoneID,
		ZoneName:  &zoneName,
		EventType: models.EventZoneBreach,
		Severity:  breachSeverity(zone),
		Metadata: &models.EventMetadata{
			Confidence:     &confidence,
			DetectedObject: "person",
			SubjectID:      report.SubjectID,
			SubjectName:    report.SubjectName,
		},
	}

	best := math.Inf(1)
	for _, c := range cameras {
		if d := geofence.HaversineDistance(point, c.Position()); d < best {
			best = d
			event.CameraID = c.ID
			event.CameraName = c.Name
		}
	}
	return event
}

func (m *GeofenceMonitor) startRecordings(ctx context.Context, zone models.GeofenceZone, cameras []models.Camera) {
	for _, c := range cameras {
		_, err := m.recorder.StartRecording(ctx, models.StartRecordingInput{
			CameraID:    c.ID,
			TriggerType: models.TriggerZoneBreach,
		})
		switch {
		case err == nil:
			m.logger.Info("Auto recording started", zap.String("zone_id", zone.ID), zap.String("camera_id", c.ID))
		case errors.Is(err, repository.ErrRecordingInProgress):
		default:
			m.logger.Warn("Auto recording failed", zap.String("zone_id", zone.ID), zap.String("camera_id", c.ID), zap.Error(err))
		}
	}
}
