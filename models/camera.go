package models

import (
	"time"
)

type CameraStatus string

const (
	CameraOnline      CameraStatus = "online"
	CameraOffline     CameraStatus = "offline"
	CameraMaintenance CameraStatus = "maintenance"
	CameraError       CameraStatus = "error"
)

func (s CameraStatus) Valid() bool {
	switch s {
	case CameraOnline, CameraOffline, CameraMaintenance, CameraError:
		return true
	}
	return false
}

type CameraType string

const (
	CameraFixed  CameraType = "fixed"
	CameraPTZ    CameraType = "ptz"
	CameraDome   CameraType = "dome"
	CameraBullet CameraType = "bullet"
)

func (t CameraType) Valid() bool {
	switch t {
	case CameraFixed, CameraPTZ, CameraDome, CameraBullet:
		return true
	}
	return false
}

type Camera struct {
	ID                 string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string       `json:"name" gorm:"not null"`
	Location           string       `json:"location"`
	Latitude           float64      `json:"latitude" gorm:"not null"`
	Longitude          float64      `json:"longitude" gorm:"not null"`
	Status             CameraStatus `json:"status" gorm:"type:varchar(20);default:offline"`
	Type               CameraType   `json:"type" gorm:"type:varchar(20);default:fixed"`
	Resolution         string       `json:"resolution"`
	HasAudio           bool         `json:"has_audio"`
	HasNightVision     bool         `json:"has_night_vision"`
	HasMotionDetection bool         `json:"has_motion_detection"`
	MotionSensitivity  *int         `json:"motion_sensitivity,omitempty"`
	ZoneIDs            []string     `json:"zone_ids" gorm:"serializer:json;type:jsonb"`
	RTSPUrl            string       `json:"rtsp_url,omitempty"`
	StreamURL          string       `json:"stream_url,omitempty"`
	ThumbnailURL       string       `json:"thumbnail_url,omitempty"`
	LastPing           *time.Time   `json:"last_ping,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (Camera) TableName() string {
	return "cctv_cameras"
}

// SupportsPTZ reports whether the camera accepts pan/tilt/zoom commands.
func (c Camera) SupportsPTZ() bool {
	return c.Type == CameraPTZ
}

// Position returns the camera location as a point.
func (c Camera) Position() LatLng {
	return LatLng{Lat: c.Latitude, Lng: c.Longitude}
}

// CameraInput is the body of a create request. Missing status and type
// default to offline and fixed.
type CameraInput struct {
	Name               string       `json:"name" binding:"required"`
	Location           string       `json:"location"`
	Latitude           float64      `json:"latitude"`
	Longitude          float64      `json:"longitude"`
	Status             CameraStatus `json:"status"`
	Type               CameraType   `json:"type"`
	Resolution         string       `json:"resolution"`
	HasAudio           bool         `json:"has_audio"`
	HasNightVision     bool         `json:"has_night_vision"`
	HasMotionDetection bool         `json:"has_motion_detection"`
	ZoneIDs            []string     `json:"zone_ids"`
	RTSPUrl            string       `json:"rtsp_url"`
	StreamURL          string       `json:"stream_url"`
	ThumbnailURL       string       `json:"thumbnail_url"`
}

// NewCamera builds a camera from input. The caller assigns ID and timestamps.
func (in CameraInput) NewCamera() Camera {
	status := in.Status
	if status == "" {
		status = CameraOffline
	}
	camType := in.Type
	if camType == "" {
		camType = CameraFixed
	}
	return Camera{
		Name:               in.Name,
		Location:           in.Location,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		Status:             status,
		Type:               camType,
		Resolution:         in.Resolution,
		HasAudio:           in.HasAudio,
		HasNightVision:     in.HasNightVision,
		HasMotionDetection: in.HasMotionDetection,
		ZoneIDs:            uniqueIDs(in.ZoneIDs),
		RTSPUrl:            in.RTSPUrl,
		StreamURL:          in.StreamURL,
		ThumbnailURL:       in.ThumbnailURL,
	}
}

func (in CameraInput) Validate() error {
	if in.Name == "" {
		return invalid("name is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("unknown camera status %q", in.Status)
	}
	if in.Type != "" && !in.Type.Valid() {
		return invalid("unknown camera type %q", in.Type)
	}
	return validCoordinate(in.Latitude, in.Longitude)
}

// CameraPatch carries a partial update; nil fields are left untouched.
type CameraPatch struct {
	Name               *string       `json:"name"`
	Location           *string       `json:"location"`
	Latitude           *float64      `json:"latitude"`
	Longitude          *float64      `json:"longitude"`
	Status             *CameraStatus `json:"status"`
	Type               *CameraType   `json:"type"`
	Resolution         *string       `json:"resolution"`
	HasAudio           *bool         `json:"has_audio"`
	HasNightVision     *bool         `json:"has_night_vision"`
	HasMotionDetection *bool         `json:"has_motion_detection"`
	ZoneIDs            *[]string     `json:"zone_ids"`
	RTSPUrl            *string       `json:"rtsp_url"`
	StreamURL          *string       `json:"stream_url"`
	ThumbnailURL       *string       `json:"thumbnail_url"`
	LastPing           *time.Time    `json:"last_ping"`
}

func (p CameraPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return invalid("name cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("unknown camera status %q", *p.Status)
	}
	if p.Type != nil && !p.Type.Valid() {
		return invalid("unknown camera type %q", *p.Type)
	}
	if p.Latitude != nil {
		if err := validCoordinate(*p.Latitude, 0); err != nil {
			return err
		}
	}
	if p.Longitude != nil {
		return validCoordinate(0, *p.Longitude)
	}
	return nil
}

// Apply merges the patch into c.
func (p CameraPatch) Apply(c *Camera) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Latitude != nil {
		c.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		c.Longitude = *p.Longitude
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Resolution != nil {
		c.Resolution = *p.Resolution
	}
	if p.HasAudio != nil {
		c.HasAudio = *p.HasAudio
	}
	if p.HasNightVision != nil {
		c.HasNightVision = *p.HasNightVision
	}
	if p.HasMotionDetection != nil {
		c.HasMotionDetection = *p.HasMotionDetection
	}
	if p.ZoneIDs != nil {
		c.ZoneIDs = uniqueIDs(*p.ZoneIDs)
	}
	if p.RTSPUrl != nil {
		c.RTSPUrl = *p.RTSPUrl
	}
	if p.StreamURL != nil {
		c.StreamURL = *p.StreamURL
	}
	if p.ThumbnailURL != nil {
		c.ThumbnailURL = *p.ThumbnailURL
	}
	if p.LastPing != nil {
		ping := *p.LastPing
		c.LastPing = &ping
	}
}

// Clone returns a deep copy so callers never share slices with the registry.
func (c Camera) Clone() Camera {
	c.ZoneIDs = append(make([]string, 0, len(c.ZoneIDs)), c.ZoneIDs...)
	if c.MotionSensitivity != nil {
		v := *c.MotionSensitivity
		c.MotionSensitivity = &v
	}
	if c.LastPing != nil {
		v := *c.LastPing
		c.LastPing = &v
	}
	return c
}

type PTZCommand string

const (
	PTZPanLeft  PTZCommand = "pan_left"
	PTZPanRight PTZCommand = "pan_right"
	PTZTiltUp   PTZCommand = "tilt_up"
	PTZTiltDown PTZCommand = "tilt_down"
	PTZZoomIn   PTZCommand = "zoom_in"
	PTZZoomOut  PTZCommand = "zoom_out"
	PTZPreset   PTZCommand = "preset"
)

func (c PTZCommand) Valid() bool {
	switch c {
	case PTZPanLeft, PTZPanRight, PTZTiltUp, PTZTiltDown, PTZZoomIn, PTZZoomOut, PTZPreset:
		return true
	}
	return false
}
