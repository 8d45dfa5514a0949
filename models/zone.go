package models

import (
	"time"
)

type ZoneType string

const (
	ZoneRestricted ZoneType = "restricted"
	ZoneMonitoring ZoneType = "monitoring"
	ZoneAlert      ZoneType = "alert"
	ZoneEmergency  ZoneType = "emergency"
)

func (t ZoneType) Valid() bool {
	switch t {
	case ZoneRestricted, ZoneMonitoring, ZoneAlert, ZoneEmergency:
		return true
	}
	return false
}

type ZonePriority string

const (
	PriorityLow      ZonePriority = "low"
	PriorityMedium   ZonePriority = "medium"
	PriorityHigh     ZonePriority = "high"
	PriorityCritical ZonePriority = "critical"
)

func (p ZonePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// AlertSettings are independent switches evaluated by the dashboards.
type AlertSettings struct {
	NotifyGuards      bool `json:"notify_guards"`
	NotifySupervisors bool `json:"notify_supervisors"`
	SoundAlarm        bool `json:"sound_alarm"`
	AutoLockdown      bool `json:"auto_lockdown"`
}

// ZoneSchedule is an activation window. Stored only; nothing evaluates it.
type ZoneSchedule struct {
	DaysOfWeek []int  `json:"days_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// GeofenceZone is circular when Radius is set, polygonal when it has at
// least three coordinates and no radius, degenerate otherwise.
type GeofenceZone struct {
	ID            string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string         `json:"name" gorm:"not null"`
	Description   string         `json:"description"`
	Type          ZoneType       `json:"type" gorm:"type:varchar(20);not null"`
	Coordinates   []LatLng       `json:"coordinates,omitempty" gorm:"serializer:json;type:jsonb"`
	Center        *LatLng        `json:"center,omitempty" gorm:"serializer:json;type:jsonb"`
	Radius        *float64       `json:"radius,omitempty"`
	IsActive      bool           `json:"is_active"`
	Priority      ZonePriority   `json:"priority" gorm:"type:varchar(20);default:medium"`
	CameraIDs     []string       `json:"camera_ids" gorm:"serializer:json;type:jsonb"`
	AutoRecording bool           `json:"auto_recording"`
	AlertSettings AlertSettings  `json:"alert_settings" gorm:"embedded;embeddedPrefix:alert_"`
	Schedule      []ZoneSchedule `json:"schedule,omitempty" gorm:"serializer:json;type:jsonb"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (GeofenceZone) TableName() string {
	return "cctv_geofence_zones"
}

func (z GeofenceZone) Clone() GeofenceZone {
	z.Coordinates = append([]LatLng(nil), z.Coordinates...)
	z.CameraIDs = append(make([]string, 0, len(z.CameraIDs)), z.CameraIDs...)
	z.Schedule = append([]ZoneSchedule(nil), z.Schedule...)
	if z.Center != nil {
		c := *z.Center
		z.Center = &c
	}
	if z.Radius != nil {
		r := *z.Radius
		z.Radius = &r
	}
	return z
}

// ValidateShape checks the geometry after a partial update.
func (z GeofenceZone) ValidateShape() error {
	return validShape(z.Coordinates, z.Center, z.Radius)
}

type ZoneInput struct {
	Name          string         `json:"name" binding:"required"`
	Description   string         `json:"description"`
	Type          ZoneType       `json:"type"`
	Coordinates   []LatLng       `json:"coordinates"`
	Center        *LatLng        `json:"center"`
	Radius        *float64       `json:"radius"`
	IsActive      *bool          `json:"is_active"`
	Priority      ZonePriority   `json:"priority"`
	CameraIDs     []string       `json:"camera_ids"`
	AutoRecording bool           `json:"auto_recording"`
	AlertSettings AlertSettings  `json:"alert_settings"`
	Schedule      []ZoneSchedule `json:"schedule"`
}

func (in ZoneInput) Validate() error {
	if in.Name == "" {
		return invalid("name is required")
	}
	if in.Type != "" && !in.Type.Valid() {
		return invalid("unknown zone type %q", in.Type)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return invalid("unknown zone priority %q", in.Priority)
	}
	return validShape(in.Coordinates, in.Center, in.Radius)
}

// NewZone builds a zone from input. Zones are active unless is_active is
// explicitly false.
func (in ZoneInput) NewZone() GeofenceZone {
	zoneType := in.Type
	if zoneType == "" {
		zoneType = ZoneMonitoring
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	z := GeofenceZone{
		Name:          in.Name,
		Description:   in.Description,
		Type:          zoneType,
		Coordinates:   in.Coordinates,
		Center:        in.Center,
		Radius:        in.Radius,
		IsActive:      active,
		Priority:      priority,
		CameraIDs:     uniqueIDs(in.CameraIDs),
		AutoRecording: in.AutoRecording,
		AlertSettings: in.AlertSettings,
		Schedule:      in.Schedule,
	}
	return z.Clone()
}

type ZonePatch struct {
	Name          *string         `json:"name"`
	Description   *string         `json:"description"`
	Type          *ZoneType       `json:"type"`
	Coordinates   *[]LatLng       `json:"coordinates"`
	Center        *LatLng         `json:"center"`
	Radius        *float64        `json:"radius"`
	IsActive      *bool           `json:"is_active"`
	Priority      *ZonePriority   `json:"priority"`
	CameraIDs     *[]string       `json:"camera_ids"`
	AutoRecording *bool           `json:"auto_recording"`
	AlertSettings *AlertSettings  `json:"alert_settings"`
	Schedule      *[]ZoneSchedule `json:"schedule"`
}

func (p ZonePatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return invalid("name cannot be empty")
	}
	if p.Type != nil && !p.Type.Valid() {
		return invalid("unknown zone type %q", *p.Type)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("unknown zone priority %q", *p.Priority)
	}
	if p.Radius != nil && *p.Radius <= 0 {
		return invalid("radius must be positive")
	}
	return nil
}

func (p ZonePatch) Apply(z *GeofenceZone) {
	if p.Name != nil {
		z.Name = *p.Name
	}
	if p.Description != nil {
		z.Description = *p.Description
	}
	if p.Type != nil {
		z.Type = *p.Type
	}
	if p.Coordinates != nil {
		z.Coordinates = append([]LatLng(nil), (*p.Coordinates)...)
	}
	if p.Center != nil {
		c := *p.Center
		z.Center = &c
	}
	if p.Radius != nil {
		r := *p.Radius
		z.Radius = &r
	}
	if p.IsActive != nil {
		z.IsActive = *p.IsActive
	}
	if p.Priority != nil {
		z.Priority = *p.Priority
	}
	if p.CameraIDs != nil {
		z.CameraIDs = uniqueIDs(*p.CameraIDs)
	}
	if p.AutoRecording != nil {
		z.AutoRecording = *p.AutoRecording
	}
	if p.AlertSettings != nil {
		z.AlertSettings = *p.AlertSettings
	}
	if p.Schedule != nil {
		z.Schedule = append([]ZoneSchedule(nil), (*p.Schedule)...)
	}
}

func validShape(coords []LatLng, center *LatLng, radius *float64) error {
	if radius != nil {
		if *radius <= 0 {
			return invalid("radius must be positive")
		}
		if center == nil {
			return invalid("circular zone needs a center")
		}
		return validCoordinate(center.Lat, center.Lng)
	}
	for _, c := range coords {
		if err := validCoordinate(c.Lat, c.Lng); err != nil {
			return err
		}
	}
	return nil
}
