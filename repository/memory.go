package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardforce-cctv/be/models"
)

// MemoryRegistry keeps the catalog in process memory. Order slices keep
// listings in insertion order.
type MemoryRegistry struct {
	mu sync.RWMutex

	cameras        map[string]*models.Camera
	cameraOrder    []string
	zones          map[string]*models.GeofenceZone
	zoneOrder      []string
	events         map[string]*models.CCTVEvent
	eventOrder     []string
	recordings     map[string]*models.RecordingSession
	recordingOrder []string

	util  UtilizationSource
	now   func() time.Time
	newID func() string
}

func NewMemoryRegistry(util UtilizationSource) *MemoryRegistry {
	return &MemoryRegistry{
		cameras:    make(map[string]*models.Camera),
		zones:      make(map[string]*models.GeofenceZone),
		events:     make(map[string]*models.CCTVEvent),
		recordings: make(map[string]*models.RecordingSession),
		util:       util,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (r *MemoryRegistry) ListCameras(_ context.Context) ([]models.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listCamerasLocked(), nil
}

func (r *MemoryRegistry) listCamerasLocked() []models.Camera {
	out := make([]models.Camera, 0, len(r.cameraOrder))
	for _, id := range r.cameraOrder {
		out = append(out, r.cameras[id].Clone())
	}
	return out
}

func (r *MemoryRegistry) GetCamera(_ context.Context, id string) (models.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cameras[id]
	if !ok {
		return models.Camera{}, notFound("camera", id)
	}
	return c.Clone(), nil
}

func (r *MemoryRegistry) CreateCamera(_ context.Context, in models.CameraInput) (models.Camera, error) {
	if err := in.Validate(); err != nil {
		return models.Camera{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c := in.NewCamera()
	if err := r.checkZonesLocked(c.ZoneIDs); err != nil {
		return models.Camera{}, err
	}
	now := r.now()
	c.ID = r.newID()
	c.CreatedAt = now
	c.UpdatedAt = now

	r.cameras[c.ID] = &c
	r.cameraOrder = append(r.cameraOrder, c.ID)
	r.linkCameraLocked(c.ID, nil, c.ZoneIDs, now)
	return c.Clone(), nil
}

func (r *MemoryRegistry) UpdateCamera(_ context.Context, id string, patch models.CameraPatch) (models.Camera, error) {
	if err := patch.Validate(); err != nil {
		return models.Camera{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cameras[id]
	if !ok {
		return models.Camera{}, notFound("camera", id)
	}
	updated := c.Clone()
	patch.Apply(&updated)
	if err := r.checkZonesLocked(updated.ZoneIDs); err != nil {
		return models.Camera{}, err
	}
	now := r.now()
	updated.UpdatedAt = now
	r.linkCameraLocked(id, c.ZoneIDs, updated.ZoneIDs, now)
	*c = updated
	return c.Clone(), nil
}

func (r *MemoryRegistry) DeleteCamera(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cameras[id]
	if !ok {
		return notFound("camera", id)
	}
	now := r.now()
	r.linkCameraLocked(id, c.ZoneIDs, nil, now)
	for _, s := range r.recordings {
		if s.CameraID == id {
			s.Fail(now, CameraDeletedReason)
		}
	}
	delete(r.cameras, id)
	r.cameraOrder = models.RemoveID(r.cameraOrder, id)
	return nil
}

func (r *MemoryRegistry) ListZones(_ context.Context) ([]models.GeofenceZone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listZonesLocked(), nil
}

func (r *MemoryRegistry) listZonesLocked() []models.GeofenceZone {
	out := make([]models.GeofenceZone, 0, len(r.zoneOrder))
	for _, id := range r.zoneOrder {
		out = append(out, r.zones[id].Clone())
	}
	return out
}

func (r *MemoryRegistry) GetZone(_ context.Context, id string) (models.GeofenceZone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.zones[id]
	if !ok {
		return models.GeofenceZone{}, notFound("zone", id)
	}
	return z.Clone(), nil
}

func (r *MemoryRegistry) CreateZone(_ context.Context, in models.ZoneInput) (models.GeofenceZone, error) {
	if err := in.Validate(); err != nil {
		return models.GeofenceZone{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	z := in.NewZone()
	if err := r.checkCamerasLocked(z.CameraIDs); err != nil {
		return models.GeofenceZone{}, err
	}
	now := r.now()
	z.ID = r.newID()
	z.CreatedAt = now
	z.UpdatedAt = now

	r.zones[z.ID] = &z
	r.zoneOrder = append(r.zoneOrder, z.ID)
	r.linkZoneLocked(z.ID, nil, z.CameraIDs, now)
	return z.Clone(), nil
}

func (r *MemoryRegistry) UpdateZone(_ context.Context, id string, patch models.ZonePatch) (models.GeofenceZone, error) {
	if err := patch.Validate(); err != nil {
		return models.GeofenceZone{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[id]
	if !ok {
		return models.GeofenceZone{}, notFound("zone", id)
	}
	updated := z.Clone()
	patch.Apply(&updated)
	if err := updated.ValidateShape(); err != nil {
		return models.GeofenceZone{}, err
	}
	if err := r.checkCamerasLocked(updated.CameraIDs); err != nil {
		return models.GeofenceZone{}, err
	}
	now := r.now()
	updated.UpdatedAt = now
	r.linkZoneLocked(id, z.CameraIDs, updated.CameraIDs, now)
	*z = updated
	return z.Clone(), nil
}

func (r *MemoryRegistry) DeleteZone(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[id]
	if !ok {
		return notFound("zone", id)
	}
	r.linkZoneLocked(id, z.CameraIDs, nil, r.now())
	delete(r.zones, id)
	r.zoneOrder = models.RemoveID(r.zoneOrder, id)
	return nil
}

func (r *MemoryRegistry) ListEvents(_ context.Context, filter EventFilter) ([]models.CCTVEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]models.CCTVEvent, 0, len(r.eventOrder))
	for _, id := range r.eventOrder {
		events = append(events, *r.events[id])
	}
	return filterEvents(events, filter), nil
}

func (r *MemoryRegistry) CreateEvent(_ context.Context, event models.CCTVEvent) (models.CCTVEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := prepareEvent(event, r.newID, r.now())
	if err != nil {
		return models.CCTVEvent{}, err
	}
	if _, exists := r.events[e.ID]; exists {
		return models.CCTVEvent{}, fmt.Errorf("%w: event %q already exists", ErrInvalidInput, e.ID)
	}
	if c, ok := r.cameras[e.CameraID]; ok && e.CameraName == "" {
		e.CameraName = c.Name
	}
	r.events[e.ID] = &e
	r.eventOrder = append(r.eventOrder, e.ID)
	return e.Clone(), nil
}

// AcknowledgeEvent stamps the event once. Later calls return it unchanged.
func (r *MemoryRegistry) AcknowledgeEvent(_ context.Context, id, actor string) (models.CCTVEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return models.CCTVEvent{}, notFound("event", id)
	}
	e.Acknowledge(actor, r.now())
	return e.Clone(), nil
}

func (r *MemoryRegistry) ListRecordings(_ context.Context, cameraID string) ([]models.RecordingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listRecordingsLocked(cameraID), nil
}

func (r *MemoryRegistry) listRecordingsLocked(cameraID string) []models.RecordingSession {
	out := make([]models.RecordingSession, 0, len(r.recordingOrder))
	for _, id := range r.recordingOrder {
		s := r.recordings[id]
		if cameraID != "" && s.CameraID != cameraID {
			continue
		}
		out = append(out, s.Clone())
	}
	return out
}

func (r *MemoryRegistry) StartRecording(_ context.Context, in models.StartRecordingInput) (models.RecordingSession, error) {
	if err := in.Normalize(); err != nil {
		return models.RecordingSession{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cameras[in.CameraID]
	if !ok {
		return models.RecordingSession{}, notFound("camera", in.CameraID)
	}
	for _, s := range r.recordings {
		if s.CameraID == c.ID && s.Status == models.RecordingActive {
			return models.RecordingSession{}, fmt.Errorf("camera %q session %q: %w", c.ID, s.ID, ErrRecordingInProgress)
		}
	}
	id := r.newID()
	s := in.NewSession(*c, id, r.now(), storageLocation(c.ID, id))
	r.recordings[id] = &s
	r.recordingOrder = append(r.recordingOrder, id)
	return s.Clone(), nil
}

func (r *MemoryRegistry) StopRecording(_ context.Context, id string) (models.RecordingSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.recordings[id]
	if !ok {
		return models.RecordingSession{}, false, notFound("recording", id)
	}
	stopped := s.Complete(r.now())
	return s.Clone(), stopped, nil
}

func (r *MemoryRegistry) FailRecording(_ context.Context, id, reason string) (models.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.recordings[id]
	if !ok {
		return models.RecordingSession{}, notFound("recording", id)
	}
	s.Fail(r.now(), reason)
	return s.Clone(), nil
}

func (r *MemoryRegistry) ControlPTZ(_ context.Context, cameraID string, command models.PTZCommand, _ *float64) error {
	if !command.Valid() {
		return fmt.Errorf("%q: %w", command, ErrInvalidPTZCommand)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cameras[cameraID]
	if !ok {
		return notFound("camera", cameraID)
	}
	return checkPTZ(*c, command)
}

func (r *MemoryRegistry) SetMotionDetection(_ context.Context, cameraID string, enabled bool, sensitivity *int) (models.Camera, error) {
	if err := checkSensitivity(sensitivity); err != nil {
		return models.Camera{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cameras[cameraID]
	if !ok {
		return models.Camera{}, notFound("camera", cameraID)
	}
	applyMotion(c, enabled, sensitivity)
	c.UpdatedAt = r.now()
	return c.Clone(), nil
}

func (r *MemoryRegistry) SystemHealth(_ context.Context) (models.SystemHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cameras := r.listCamerasLocked()
	recordings := r.listRecordingsLocked("")
	var u models.Utilization
	if r.util != nil {
		u = r.util.Utilization(cameras, recordings)
	}
	return models.ComputeHealth(cameras, r.listZonesLocked(), recordings, u, r.now()), nil
}

func (r *MemoryRegistry) checkZonesLocked(ids []string) error {
	for _, id := range ids {
		if _, ok := r.zones[id]; !ok {
			return fmt.Errorf("%w: unknown zone %q", ErrInvalidInput, id)
		}
	}
	return nil
}

func (r *MemoryRegistry) checkCamerasLocked(ids []string) error {
	for _, id := range ids {
		if _, ok := r.cameras[id]; !ok {
			return fmt.Errorf("%w: unknown camera %q", ErrInvalidInput, id)
		}
	}
	return nil
}

// linkCameraLocked mirrors a change of cameraID's zone list onto the zones.
func (r *MemoryRegistry) linkCameraLocked(cameraID string, before, after []string, now time.Time) {
	for _, zoneID := range before {
		if z, ok := r.zones[zoneID]; ok && !models.ContainsID(after, zoneID) {
			z.CameraIDs = models.RemoveID(z.CameraIDs, cameraID)
			z.UpdatedAt = now
		}
	}
	for _, zoneID := range after {
		if z, ok := r.zones[zoneID]; ok && !models.ContainsID(z.CameraIDs, cameraID) {
			z.CameraIDs = models.AddID(z.CameraIDs, cameraID)
			z.UpdatedAt = now
		}
	}
}

// linkZoneLocked mirrors a change of zoneID's camera list onto the cameras.
func (r *MemoryRegistry) linkZoneLocked(zoneID string, before, after []string, now time.Time) {
	for _, cameraID := range before {
		if c, ok := r.cameras[cameraID]; ok && !models.ContainsID(after, cameraID) {
			c.ZoneIDs = models.RemoveID(c.ZoneIDs, zoneID)
			c.UpdatedAt = now
		}
	}
	for _, cameraID := range after {
		if c, ok := r.cameras[cameraID]; ok && !models.ContainsID(c.ZoneIDs, zoneID) {
			c.ZoneIDs = models.AddID(c.ZoneIDs, zoneID)
			c.UpdatedAt = now
		}
	}
}

func storageLocation(cameraID, sessionID string) string {
	return fmt.Sprintf("recordings/%s/%s.mp4", cameraID, sessionID)
}
