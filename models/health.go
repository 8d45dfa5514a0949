package models

import "time"

// SystemHealth is an aggregate snapshot of the registry. Usage fields are
// percentages in [0, 100].
type SystemHealth struct {
	TotalCameras     int       `json:"total_cameras"`
	OnlineCameras    int       `json:"online_cameras"`
	RecordingCameras int       `json:"recording_cameras"`
	ActiveZones      int       `json:"active_zones"`
	StorageUsage     float64   `json:"storage_usage"`
	BandwidthUsage   float64   `json:"bandwidth_usage"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Utilization carries the externally sourced part of SystemHealth.
type Utilization struct {
	StorageUsage   float64
	BandwidthUsage float64
}

// ComputeHealth counts registry state into a SystemHealth snapshot.
func ComputeHealth(cameras []Camera, zones []GeofenceZone, recordings []RecordingSession, u Utilization, at time.Time) SystemHealth {
	h := SystemHealth{
		TotalCameras:   len(cameras),
		StorageUsage:   clampPercent(u.StorageUsage),
		BandwidthUsage: clampPercent(u.BandwidthUsage),
		GeneratedAt:    at,
	}
	for _, c := range cameras {
		if c.Status == CameraOnline {
			h.OnlineCameras++
		}
	}
	for _, z := range zones {
		if z.IsActive {
			h.ActiveZones++
		}
	}
	recording := map[string]bool{}
	for _, r := range recordings {
		if r.Status == RecordingActive {
			recording[r.CameraID] = true
		}
	}
	h.RecordingCameras = len(recording)
	return h
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
