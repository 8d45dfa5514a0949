package repository

import (
	"context"
	"time"

	"guardforce-cctv/be/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string  { return &v }
func int64Ptr(v int64) *int64     { return &v }

// LoadFixtures seeds a demo site: four cameras around one compound, three
// zones, a short event history and one finished recording.
func (r *MemoryRegistry) LoadFixtures(ctx context.Context) error {
	cameraInputs := []models.CameraInput{
		{
			Name: "Main Gate PTZ", Location: "North entrance",
			Latitude: -6.20880, Longitude: 106.84560,
			Status: models.CameraOnline, Type: models.CameraPTZ, Resolution: "1920x1080",
			HasAudio: true, HasNightVision: true, HasMotionDetection: true,
			RTSPUrl: "rtsp://10.0.10.11:554/stream1",
		},
		{
			Name: "Lobby Dome", Location: "Building A lobby",
			Latitude: -6.20910, Longitude: 106.84610,
			Status: models.CameraOnline, Type: models.CameraDome, Resolution: "2560x1440",
			HasMotionDetection: true,
			RTSPUrl:            "rtsp://10.0.10.12:554/stream1",
		},
		{
			Name: "Parking Bullet", Location: "Basement parking",
			Latitude: -6.20950, Longitude: 106.84500,
			Status: models.CameraOffline, Type: models.CameraBullet, Resolution: "1920x1080",
			HasNightVision: true,
			RTSPUrl:        "rtsp://10.0.10.13:554/stream1",
		},
		{
			Name: "Server Room", Location: "Building A, level 3",
			Latitude: -6.20905, Longitude: 106.84640,
			Status: models.CameraMaintenance, Type: models.CameraFixed, Resolution: "1280x720",
			HasMotionDetection: true,
			RTSPUrl:            "rtsp://10.0.10.14:554/stream1",
		},
	}

	cameras := make([]models.Camera, 0, len(cameraInputs))
	for _, in := range cameraInputs {
		c, err := r.CreateCamera(ctx, in)
		if err != nil {
			return err
		}
		cameras = append(cameras, c)
	}
	if _, err := r.SetMotionDetection(ctx, cameras[0].ID, true, intPtr(70)); err != nil {
		return err
	}

	zoneInputs := []models.ZoneInput{
		{
			Name: "Main Gate Perimeter", Description: "Restricted after hours",
			Type: models.ZoneRestricted, Priority: models.PriorityHigh,
			Center: &models.LatLng{Lat: -6.20880, Lng: 106.84560}, Radius: floatPtr(40),
			CameraIDs:     []string{cameras[0].ID},
			AutoRecording: true,
			AlertSettings: models.AlertSettings{NotifyGuards: true, NotifySupervisors: true},
			Schedule:      []models.ZoneSchedule{{DaysOfWeek: []int{1, 2, 3, 4, 5}, StartTime: "22:00", EndTime: "06:00"}},
		},
		{
			Name: "Parking Area", Description: "Vehicle monitoring",
			Type: models.ZoneMonitoring, Priority: models.PriorityLow,
			Coordinates: []models.LatLng{
				{Lat: -6.20940, Lng: 106.84480},
				{Lat: -6.20940, Lng: 106.84520},
				{Lat: -6.20965, Lng: 106.84520},
				{Lat: -6.20965, Lng: 106.84480},
			},
			CameraIDs: []string{cameras[2].ID},
		},
		{
			Name: "Server Room", Description: "Authorized staff only",
			Type: models.ZoneEmergency, Priority: models.PriorityCritical,
			Center: &models.LatLng{Lat: -6.20905, Lng: 106.84640}, Radius: floatPtr(10),
			CameraIDs:     []string{cameras[1].ID, cameras[3].ID},
			AutoRecording: true,
			AlertSettings: models.AlertSettings{NotifyGuards: true, NotifySupervisors: true, SoundAlarm: true, AutoLockdown: true},
		},
	}
	zones := make([]models.GeofenceZone, 0, len(zoneInputs))
	for _, in := range zoneInputs {
		z, err := r.CreateZone(ctx, in)
		if err != nil {
			return err
		}
		zones = append(zones, z)
	}

	now := r.now()
	events := []models.CCTVEvent{
		{
			CameraID: cameras[0].ID, ZoneID: &zones[0].ID, ZoneName: stringPtr(zones[0].Name),
			EventType: models.EventZoneBreach, Severity: models.SeverityCritical,
			Timestamp: now.Add(-45 * time.Minute),
			Metadata:  &models.EventMetadata{Confidence: floatPtr(0.94), DetectedObject: "person"},
		},
		{
			CameraID:  cameras[2].ID,
			EventType: models.EventCameraOffline, Severity: models.SeverityWarning,
			Timestamp: now.Add(-30 * time.Minute),
		},
		{
			CameraID:  cameras[1].ID,
			EventType: models.EventMotionDetected, Severity: models.SeverityInfo,
			Timestamp: now.Add(-10 * time.Minute),
			Metadata:  &models.EventMetadata{Confidence: floatPtr(0.81), DetectedObject: "person"},
		},
	}
	for _, e := range events {
		if _, err := r.CreateEvent(ctx, e); err != nil {
			return err
		}
	}

	s, err := r.StartRecording(ctx, models.StartRecordingInput{CameraID: cameras[0].ID, TriggerType: models.TriggerZoneBreach})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recordings[s.ID]
	rec.StartTime = now.Add(-45 * time.Minute)
	rec.Complete(now.Add(-40 * time.Minute))
	rec.FileSize = int64Ptr(150 * 1024 * 1024)
	return nil
}
