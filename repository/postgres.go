package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"guardforce-cctv/be/models"
)

// PostgresRegistry stores the catalog through gorm. Status transitions are
// conditional UPDATEs so concurrent writers cannot apply the same change
// twice.
type PostgresRegistry struct {
	db    *gorm.DB
	util  UtilizationSource
	now   func() time.Time
	newID func() string
}

func NewPostgresRegistry(db *gorm.DB, util UtilizationSource) *PostgresRegistry {
	return &PostgresRegistry{db: db, util: util, now: time.Now, newID: uuid.NewString}
}

func (r *PostgresRegistry) ListCameras(ctx context.Context) ([]models.Camera, error) {
	var cameras []models.Camera
	if err := r.db.WithContext(ctx).Order("created_at").Find(&cameras).Error; err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return cloneCameras(cameras), nil
}

func (r *PostgresRegistry) GetCamera(ctx context.Context, id string) (models.Camera, error) {
	return r.getCamera(r.db.WithContext(ctx), id)
}

func (r *PostgresRegistry) getCamera(tx *gorm.DB, id string) (models.Camera, error) {
	var c models.Camera
	if err := tx.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Camera{}, notFound("camera", id)
		}
		return models.Camera{}, fmt.Errorf("get camera %q: %w", id, err)
	}
	return c.Clone(), nil
}

func (r *PostgresRegistry) CreateCamera(ctx context.Context, in models.CameraInput) (models.Camera, error) {
	if err := in.Validate(); err != nil {
		return models.Camera{}, err
	}
	c := in.NewCamera()
	now := r.now()
	c.ID = r.newID()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.linkCamera(tx, c.ID, nil, c.ZoneIDs, now); err != nil {
			return err
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		return models.Camera{}, fmt.Errorf("create camera: %w", err)
	}
	return c.Clone(), nil
}

func (r *PostgresRegistry) UpdateCamera(ctx context.Context, id string, patch models.CameraPatch) (models.Camera, error) {
	if err := patch.Validate(); err != nil {
		return models.Camera{}, err
	}
	var out models.Camera
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := r.getCamera(tx, id)
		if err != nil {
			return err
		}
		before := c.ZoneIDs
		patch.Apply(&c)
		c.UpdatedAt = r.now()
		if err := r.linkCamera(tx, id, before, c.ZoneIDs, c.UpdatedAt); err != nil {
			return err
		}
		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return models.Camera{}, fmt.Errorf("update camera %q: %w", id, err)
	}
	return out.Clone(), nil
}

func (r *PostgresRegistry) DeleteCamera(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := r.getCamera(tx, id)
		if err != nil {
			return err
		}
		now := r.now()
		if err := r.linkCamera(tx, id, c.ZoneIDs, nil, now); err != nil {
			return err
		}
		if err := r.failActiveRecordings(tx, id, now); err != nil {
			return err
		}
		return tx.Delete(&models.Camera{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete camera %q: %w", id, err)
	}
	return nil
}

func (r *PostgresRegistry) failActiveRecordings(tx *gorm.DB, cameraID string, now time.Time) error {
	var active []models.RecordingSession
	if err := tx.Where("camera_id = ? AND status = ?", cameraID, models.RecordingActive).Find(&active).Error; err != nil {
		return err
	}
	for _, s := range active {
		s.Fail(now, CameraDeletedReason)
		if err := tx.Model(&models.RecordingSession{}).
			Where("id = ? AND status = ?", s.ID, models.RecordingActive).
			Updates(map[string]interface{}{
				"status":         s.Status,
				"end_time":       s.EndTime,
				"duration":       s.Duration,
				"failure_reason": s.FailureReason,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRegistry) ListZones(ctx context.Context) ([]models.GeofenceZone, error) {
	var zones []models.GeofenceZone
	if err := r.db.WithContext(ctx).Order("created_at").Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	out := make([]models.GeofenceZone, 0, len(zones))
	for _, z := range zones {
		out = append(out, z.Clone())
	}
	return out, nil
}

func (r *PostgresRegistry) GetZone(ctx context.Context, id string) (models.GeofenceZone, error) {
	return r.getZone(r.db.WithContext(ctx), id)
}

func (r *PostgresRegistry) getZone(tx *gorm.DB, id string) (models.GeofenceZone, error) {
	var z models.GeofenceZone
	if err := tx.First(&z, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GeofenceZone{}, notFound("zone", id)
		}
		return models.GeofenceZone{}, fmt.Errorf("get zone %q: %w", id, err)
	}
	return z.Clone(), nil
}

func (r *PostgresRegistry) CreateZone(ctx context.Context, in models.ZoneInput) (models.GeofenceZone, error) {
	if err := in.Validate(); err != nil {
		return models.GeofenceZone{}, err
	}
	z := in.NewZone()
	now := r.now()
	z.ID = r.newID()
	z.CreatedAt = now
	z.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.linkZone(tx, z.ID, nil, z.CameraIDs, now); err != nil {
			return err
		}
		return tx.Create(&z).Error
	})
	if err != nil {
		return models.GeofenceZone{}, fmt.Errorf("create zone: %w", err)
	}
	return z.Clone(), nil
}

func (r *PostgresRegistry) UpdateZone(ctx context.Context, id string, patch models.ZonePatch) (models.GeofenceZone, error) {
	if err := patch.Validate(); err != nil {
		return models.GeofenceZone{}, err
	}
	var out models.GeofenceZone
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		z, err := r.getZone(tx, id)
		if err != nil {
			return err
		}
		before := z.CameraIDs
		patch.Apply(&z)
		if err := z.ValidateShape(); err != nil {
			return err
		}
		z.UpdatedAt = r.now()
		if err := r.linkZone(tx, id, before, z.CameraIDs, z.UpdatedAt); err != nil {
			return err
		}
		if err := tx.Save(&z).Error; err != nil {
			return err
		}
		out = z
		return nil
	})
	if err != nil {
		return models.GeofenceZone{}, fmt.Errorf("update zone %q: %w", id, err)
	}
	return out.Clone(), nil
}

func (r *PostgresRegistry) DeleteZone(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		z, err := r.getZone(tx, id)
		if err != nil {
			return err
		}
		if err := r.linkZone(tx, id, z.CameraIDs, nil, r.now()); err != nil {
			return err
		}
		return tx.Delete(&models.GeofenceZone{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete zone %q: %w", id, err)
	}
	return nil
}

func (r *PostgresRegistry) ListEvents(ctx context.Context, filter EventFilter) ([]models.CCTVEvent, error) {
	q := r.db.WithContext(ctx).Order(`"timestamp" DESC`)
	if filter.CameraID != "" {
		q = q.Where("camera_id = ?", filter.CameraID)
	}
	if filter.UnacknowledgedOnly {
		q = q.Where("acknowledged = ?", false)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var events []models.CCTVEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]models.CCTVEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (r *PostgresRegistry) CreateEvent(ctx context.Context, event models.CCTVEvent) (models.CCTVEvent, error) {
	e, err := prepareEvent(event, r.newID, r.now())
	if err != nil {
		return models.CCTVEvent{}, err
	}
	db := r.db.WithContext(ctx)
	if e.CameraName == "" && e.CameraID != "" {
		if c, err := r.getCamera(db, e.CameraID); err == nil {
			e.CameraName = c.Name
		}
	}
	if err := db.Create(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.CCTVEvent{}, fmt.Errorf("%w: event %q already exists", ErrInvalidInput, e.ID)
		}
		return models.CCTVEvent{}, fmt.Errorf("create event: %w", err)
	}
	return e.Clone(), nil
}

// AcknowledgeEvent only updates rows that are still unacknowledged, so the
// first actor and timestamp stick.
func (r *PostgresRegistry) AcknowledgeEvent(ctx context.Context, id, actor string) (models.CCTVEvent, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.CCTVEvent{}).
		Where("id = ? AND acknowledged = ?", id, false).
		Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_by": actor,
			"acknowledged_at": r.now(),
		})
	if res.Error != nil {
		return models.CCTVEvent{}, fmt.Errorf("acknowledge event %q: %w", id, res.Error)
	}
	var e models.CCTVEvent
	if err := db.First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CCTVEvent{}, notFound("event", id)
		}
		return models.CCTVEvent{}, fmt.Errorf("acknowledge event %q: %w", id, err)
	}
	return e.Clone(), nil
}

func (r *PostgresRegistry) ListRecordings(ctx context.Context, cameraID string) ([]models.RecordingSession, error) {
	return r.listRecordings(r.db.WithContext(ctx), cameraID)
}

func (r *PostgresRegistry) listRecordings(db *gorm.DB, cameraID string) ([]models.RecordingSession, error) {
	q := db.Order("start_time")
	if cameraID != "" {
		q = q.Where("camera_id = ?", cameraID)
	}
	var sessions []models.RecordingSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	out := make([]models.RecordingSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (r *PostgresRegistry) StartRecording(ctx context.Context, in models.StartRecordingInput) (models.RecordingSession, error) {
	if err := in.Normalize(); err != nil {
		return models.RecordingSession{}, err
	}
	db := r.db.WithContext(ctx)
	c, err := r.getCamera(db, in.CameraID)
	if err != nil {
		return models.RecordingSession{}, err
	}

	var active int64
	if err := db.Model(&models.RecordingSession{}).
		Where("camera_id = ? AND status = ?", c.ID, models.RecordingActive).
		Count(&active).Error; err != nil {
		return models.RecordingSession{}, fmt.Errorf("start recording: %w", err)
	}
	if active > 0 {
		return models.RecordingSession{}, fmt.Errorf("camera %q: %w", c.ID, ErrRecordingInProgress)
	}

	id := r.newID()
	s := in.NewSession(c, id, r.now(), storageLocation(c.ID, id))
	if err := db.Create(&s).Error; err != nil {
		// the partial unique index catches a concurrent start
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.RecordingSession{}, fmt.Errorf("camera %q: %w", c.ID, ErrRecordingInProgress)
		}
		return models.RecordingSession{}, fmt.Errorf("start recording: %w", err)
	}
	return s.Clone(), nil
}

func (r *PostgresRegistry) StopRecording(ctx context.Context, id string) (models.RecordingSession, bool, error) {
	return r.finishRecording(ctx, id, func(s *models.RecordingSession, at time.Time) bool {
		return s.Complete(at)
	})
}

func (r *PostgresRegistry) FailRecording(ctx context.Context, id, reason string) (models.RecordingSession, error) {
	s, _, err := r.finishRecording(ctx, id, func(s *models.RecordingSession, at time.Time) bool {
		return s.Fail(at, reason)
	})
	return s, err
}

// finishRecording applies a terminal transition with an UPDATE conditioned
// on the status the session was read in. Losing the race reports false.
func (r *PostgresRegistry) finishRecording(ctx context.Context, id string, transition func(*models.RecordingSession, time.Time) bool) (models.RecordingSession, bool, error) {
	db := r.db.WithContext(ctx)
	s, err := r.getRecording(db, id)
	if err != nil {
		return models.RecordingSession{}, false, err
	}
	prev := s.Status
	if !transition(&s, r.now()) {
		return s, false, nil
	}
	res := db.Model(&models.RecordingSession{}).
		Where("id = ? AND status = ?", id, prev).
		Updates(map[string]interface{}{
			"status":         s.Status,
			"end_time":       s.EndTime,
			"duration":       s.Duration,
			"failure_reason": s.FailureReason,
		})
	if res.Error != nil {
		return models.RecordingSession{}, false, fmt.Errorf("finish recording %q: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := r.getRecording(db, id)
		return current, false, err
	}
	return s, true, nil
}

func (r *PostgresRegistry) getRecording(db *gorm.DB, id string) (models.RecordingSession, error) {
	var s models.RecordingSession
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RecordingSession{}, notFound("recording", id)
		}
		return models.RecordingSession{}, fmt.Errorf("get recording %q: %w", id, err)
	}
	return s.Clone(), nil
}

func (r *PostgresRegistry) ControlPTZ(ctx context.Context, cameraID string, command models.PTZCommand, _ *float64) error {
	if !command.Valid() {
		return fmt.Errorf("%q: %w", command, ErrInvalidPTZCommand)
	}
	c, err := r.GetCamera(ctx, cameraID)
	if err != nil {
		return err
	}
	return checkPTZ(c, command)
}

func (r *PostgresRegistry) SetMotionDetection(ctx context.Context, cameraID string, enabled bool, sensitivity *int) (models.Camera, error) {
	if err := checkSensitivity(sensitivity); err != nil {
		return models.Camera{}, err
	}
	db := r.db.WithContext(ctx)
	c, err := r.getCamera(db, cameraID)
	if err != nil {
		return models.Camera{}, err
	}
	applyMotion(&c, enabled, sensitivity)
	c.UpdatedAt = r.now()
	if err := db.Model(&models.Camera{}).Where("id = ?", cameraID).Updates(map[string]interface{}{
		"has_motion_detection": c.HasMotionDetection,
		"motion_sensitivity":   c.MotionSensitivity,
		"updated_at":           c.UpdatedAt,
	}).Error; err != nil {
		return models.Camera{}, fmt.Errorf("set motion detection %q: %w", cameraID, err)
	}
	return c.Clone(), nil
}

func (r *PostgresRegistry) SystemHealth(ctx context.Context) (models.SystemHealth, error) {
	cameras, err := r.ListCameras(ctx)
	if err != nil {
		return models.SystemHealth{}, err
	}
	zones, err := r.ListZones(ctx)
	if err != nil {
		return models.SystemHealth{}, err
	}
	recordings, err := r.ListRecordings(ctx, "")
	if err != nil {
		return models.SystemHealth{}, err
	}
	var u models.Utilization
	if r.util != nil {
		u = r.util.Utilization(cameras, recordings)
	}
	return models.ComputeHealth(cameras, zones, recordings, u, r.now()), nil
}

// linkCamera mirrors a change of cameraID's zone list onto the zone rows.
func (r *PostgresRegistry) linkCamera(tx *gorm.DB, cameraID string, before, after []string, now time.Time) error {
	for _, zoneID := range diffIDs(before, after) {
		z, err := r.getZone(tx, zoneID)
		if err != nil {
			if errors.Is(err, ErrNotFound) && models.ContainsID(after, zoneID) {
				return fmt.Errorf("%w: unknown zone %q", ErrInvalidInput, zoneID)
			}
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if models.ContainsID(after, zoneID) {
			z.CameraIDs = models.AddID(z.CameraIDs, cameraID)
		} else {
			z.CameraIDs = models.RemoveID(z.CameraIDs, cameraID)
		}
		if err := tx.Model(&models.GeofenceZone{}).Where("id = ?", zoneID).
			Updates(map[string]interface{}{"camera_ids": jsonIDs(z.CameraIDs), "updated_at": now}).Error; err != nil {
			return err
		}
	}
	return nil
}

// linkZone mirrors a change of zoneID's camera list onto the camera rows.
func (r *PostgresRegistry) linkZone(tx *gorm.DB, zoneID string, before, after []string, now time.Time) error {
	for _, cameraID := range diffIDs(before, after) {
		c, err := r.getCamera(tx, cameraID)
		if err != nil {
			if errors.Is(err, ErrNotFound) && models.ContainsID(after, cameraID) {
				return fmt.Errorf("%w: unknown camera %q", ErrInvalidInput, cameraID)
			}
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if models.ContainsID(after, cameraID) {
			c.ZoneIDs = models.AddID(c.ZoneIDs, zoneID)
		} else {
			c.ZoneIDs = models.RemoveID(c.ZoneIDs, zoneID)
		}
		if err := tx.Model(&models.Camera{}).Where("id = ?", cameraID).
			Updates(map[string]interface{}{"zone_ids": jsonIDs(c.ZoneIDs), "updated_at": now}).Error; err != nil {
			return err
		}
	}
	return nil
}

// diffIDs returns ids present in exactly one of the two lists.
func diffIDs(before, after []string) []string {
	var out []string
	for _, id := range before {
		if !models.ContainsID(after, id) {
			out = append(out, id)
		}
	}
	for _, id := range after {
		if !models.ContainsID(before, id) {
			out = append(out, id)
		}
	}
	return out
}

// jsonIDs encodes an id list for map based updates, which skip the field
// serializer.
func jsonIDs(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func cloneCameras(in []models.Camera) []models.Camera {
	out := make([]models.Camera, 0, len(in))
	for _, c := range in {
		out = append(out, c.Clone())
	}
	return out
}
