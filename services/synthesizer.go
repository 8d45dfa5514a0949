package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

var detectedObjects = []string{"person", "vehicle", "animal", "package"}

// Synthesizer fabricates events from the registry catalog. It stands in for
// camera analytics until real detectors report through Publish.
type Synthesizer struct {
	registry    repository.Registry
	probability float64
	now         func() time.Time
	newID       func() string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSynthesizer(registry repository.Registry, probability float64, rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Synthesizer{
		registry:    registry,
		probability: probability,
		now:         time.Now,
		newID:       uuid.NewString,
		rng:         rng,
	}
}

// Next yields an event with the configured probability. Stale catalog reads
// are good enough to pick a camera from.
func (s *Synthesizer) Next(ctx context.Context) (models.CCTVEvent, bool, error) {
	s.mu.Lock()
	fire := s.rng.Float64() < s.probability
	s.mu.Unlock()
	if !fire {
		return models.CCTVEvent{}, false, nil
	}

	cameras, err := s.registry.ListCameras(ctx)
	if err != nil && !repository.IsStale(err) {
		return models.CCTVEvent{}, false, err
	}
	if len(cameras) == 0 {
		return models.CCTVEvent{}, false, nil
	}

	s.mu.Lock()
	camera := cameras[s.rng.Intn(len(cameras))]
	eventType := models.EventTypes[s.rng.Intn(len(models.EventTypes))]
	confidence := 0.70 + s.rng.Float64()*0.29
	object := detectedObjects[s.rng.Intn(len(detectedObjects))]
	zoneID := ""
	if len(camera.ZoneIDs) > 0 && (eventType == models.EventZoneBreach || s.rng.Intn(2) == 0) {
		zoneID = camera.ZoneIDs[s.rng.Intn(len(camera.ZoneIDs))]
	}
	duration := 30 + s.rng.Intn(271)
	s.mu.Unlock()

	event := models.CCTVEvent{
		ID:         s.newID(),
		CameraID:   camera.ID,
		CameraName: camera.Name,
		EventType:  eventType,
		Severity:   severityFor(eventType, confidence),
		Timestamp:  s.now(),
		Metadata:   &models.EventMetadata{Confidence: &confidence},
	}
	switch eventType {
	case models.EventMotionDetected, models.EventZoneBreach:
		event.Metadata.DetectedObject = object
	case models.EventRecordingStarted:
		event.Metadata.RecordingDuration = &duration
	}

	if zoneID != "" {
		zone, err := s.registry.GetZone(ctx, zoneID)
		if err == nil || repository.IsStale(err) {
			id, name := zone.ID, zone.Name
			event.ZoneID = &id
			event.ZoneName = &name
		}
	}
	return event, true, nil
}

func severityFor(t models.EventType, confidence float64) models.Severity {
	switch t {
	case models.EventZoneBreach, models.EventAlertTriggered:
		return models.SeverityCritical
	case models.EventCameraOffline:
		return models.SeverityWarning
	case models.EventMotionDetected:
		if confidence >= 0.9 {
			return models.SeverityWarning
		}
	}
	return models.SeverityInfo
}
