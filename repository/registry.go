package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = models.ErrInvalid
	ErrNotPTZCamera        = errors.New("camera does not support PTZ")
	ErrInvalidPTZCommand   = errors.New("invalid PTZ command")
	ErrRecordingInProgress = errors.New("camera is already recording")
)

// CameraDeletedReason is the failure reason given to sessions that were
// still recording when their camera was deleted.
const CameraDeletedReason = "camera deleted"

// EventFilter narrows ListEvents. A Limit of zero or less returns every match.
type EventFilter struct {
	Limit              int
	CameraID           string
	UnacknowledgedOnly bool
}

// Registry is the catalog of cameras, zones, events and recordings. Every
// method returns copies; callers never share state with the registry.
type Registry interface {
	ListCameras(ctx context.Context) ([]models.Camera, error)
	GetCamera(ctx context.Context, id string) (models.Camera, error)
	CreateCamera(ctx context.Context, in models.CameraInput) (models.Camera, error)
	UpdateCamera(ctx context.Context, id string, patch models.CameraPatch) (models.Camera, error)
	// DeleteCamera detaches the camera from its zones and fails any session
	// still recording on it.
	DeleteCamera(ctx context.Context, id string) error

	ListZones(ctx context.Context) ([]models.GeofenceZone, error)
	GetZone(ctx context.Context, id string) (models.GeofenceZone, error)
	CreateZone(ctx context.Context, in models.ZoneInput) (models.GeofenceZone, error)
	UpdateZone(ctx context.Context, id string, patch models.ZonePatch) (models.GeofenceZone, error)
	DeleteZone(ctx context.Context, id string) error

	ListEvents(ctx context.Context, filter EventFilter) ([]models.CCTVEvent, error)
	CreateEvent(ctx context.Context, event models.CCTVEvent) (models.CCTVEvent, error)
	AcknowledgeEvent(ctx context.Context, id, actor string) (models.CCTVEvent, error)

	ListRecordings(ctx context.Context, cameraID string) ([]models.RecordingSession, error)
	StartRecording(ctx context.Context, in models.StartRecordingInput) (models.RecordingSession, error)
	// StopRecording reports stopped=false with no error when the session had
	// already ended.
	StopRecording(ctx context.Context, id string) (models.RecordingSession, bool, error)
	FailRecording(ctx context.Context, id, reason string) (models.RecordingSession, error)

	ControlPTZ(ctx context.Context, cameraID string, command models.PTZCommand, value *float64) error
	SetMotionDetection(ctx context.Context, cameraID string, enabled bool, sensitivity *int) (models.Camera, error)

	SystemHealth(ctx context.Context) (models.SystemHealth, error)
}

// UtilizationSource supplies the storage and bandwidth part of SystemHealth.
type UtilizationSource interface {
	Utilization(cameras []models.Camera, recordings []models.RecordingSession) models.Utilization
}

// CapacityUtilization estimates utilization from configured capacities:
// recorded bytes against storage, online cameras at a nominal bitrate
// against the uplink.
type CapacityUtilization struct {
	StorageBytes      float64
	UplinkMbps        float64
	CameraBitrateMbps float64
}

func NewCapacityUtilization(cfg config.CapacityConfig) CapacityUtilization {
	return CapacityUtilization{
		StorageBytes:      cfg.StorageGB * 1024 * 1024 * 1024,
		UplinkMbps:        cfg.UplinkMbps,
		CameraBitrateMbps: cfg.CameraBitrateMbps,
	}
}

func (c CapacityUtilization) Utilization(cameras []models.Camera, recordings []models.RecordingSession) models.Utilization {
	var u models.Utilization
	if c.StorageBytes > 0 {
		var used int64
		for _, r := range recordings {
			if r.FileSize != nil {
				used += *r.FileSize
			}
		}
		u.StorageUsage = float64(used) / c.StorageBytes * 100
	}
	if c.UplinkMbps > 0 {
		online := 0
		for _, cam := range cameras {
			if cam.Status == models.CameraOnline {
				online++
			}
		}
		u.BandwidthUsage = float64(online) * c.CameraBitrateMbps / c.UplinkMbps * 100
	}
	return u
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func checkPTZ(camera models.Camera, command models.PTZCommand) error {
	if !command.Valid() {
		return fmt.Errorf("%q: %w", command, ErrInvalidPTZCommand)
	}
	if !camera.SupportsPTZ() {
		return fmt.Errorf("camera %q is %s: %w", camera.ID, camera.Type, ErrNotPTZCamera)
	}
	return nil
}

func checkSensitivity(sensitivity *int) error {
	if sensitivity != nil && (*sensitivity < 0 || *sensitivity > 100) {
		return fmt.Errorf("%w: motion sensitivity %d outside 0-100", ErrInvalidInput, *sensitivity)
	}
	return nil
}

func applyMotion(c *models.Camera, enabled bool, sensitivity *int) {
	c.HasMotionDetection = enabled
	if sensitivity != nil {
		s := *sensitivity
		c.MotionSensitivity = &s
	}
}

// filterEvents expects events in insertion order and returns the matches
// newest first.
func filterEvents(events []models.CCTVEvent, f EventFilter) []models.CCTVEvent {
	out := make([]models.CCTVEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if f.CameraID != "" && e.CameraID != f.CameraID {
			continue
		}
		if f.UnacknowledgedOnly && e.Acknowledged {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// prepareEvent fills server-owned fields of an incoming event. New events
// are always unacknowledged.
func prepareEvent(e models.CCTVEvent, newID func() string, now time.Time) (models.CCTVEvent, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Acknowledged = false
	e.AcknowledgedBy = nil
	e.AcknowledgedAt = nil
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e.Clone(), nil
}
