package models

import (
	"time"
)

type EventType string

const (
	EventMotionDetected   EventType = "motion_detected"
	EventZoneBreach       EventType = "zone_breach"
	EventCameraOffline    EventType = "camera_offline"
	EventRecordingStarted EventType = "recording_started"
	EventAlertTriggered   EventType = "alert_triggered"
)

// EventTypes lists every event type in a stable order.
var EventTypes = []EventType{
	EventMotionDetected,
	EventZoneBreach,
	EventCameraOffline,
	EventRecordingStarted,
	EventAlertTriggered,
}

func (t EventType) Valid() bool {
	for _, v := range EventTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

type EventMetadata struct {
	Confidence        *float64 `json:"confidence,omitempty"`
	DetectedObject    string   `json:"detected_object,omitempty"`
	RecordingDuration *int     `json:"recording_duration,omitempty"`
	ScreenshotURL     string   `json:"screenshot_url,omitempty"`
	VideoURL          string   `json:"video_url,omitempty"`
	SubjectID         string   `json:"subject_id,omitempty"`
	SubjectName       string   `json:"subject_name,omitempty"`
}

// CCTVEvent is delivered to subscribers by value. CameraName and ZoneName
// are snapshots taken when the event was raised.
type CCTVEvent struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CameraID       string         `json:"camera_id" gorm:"index;type:varchar(36)"`
	CameraName     string         `json:"camera_name"`
	ZoneID         *string        `json:"zone_id,omitempty" gorm:"type:varchar(36)"`
	ZoneName       *string        `json:"zone_name,omitempty"`
	EventType      EventType      `json:"event_type" gorm:"type:varchar(32);not null"`
	Severity       Severity       `json:"severity" gorm:"type:varchar(16);not null"`
	Timestamp      time.Time      `json:"timestamp" gorm:"index"`
	Metadata       *EventMetadata `json:"metadata,omitempty" gorm:"serializer:json;type:jsonb"`
	Acknowledged   bool           `json:"acknowledged" gorm:"default:false"`
	AcknowledgedBy *string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
}

func (CCTVEvent) TableName() string {
	return "cctv_events"
}

// Acknowledge marks the event as reviewed. It returns false, leaving the
// event untouched, when it was already acknowledged.
func (e *CCTVEvent) Acknowledge(actor string, at time.Time) bool {
	if e.Acknowledged {
		return false
	}
	e.Acknowledged = true
	e.AcknowledgedBy = &actor
	e.AcknowledgedAt = &at
	return true
}

func (e CCTVEvent) Validate() error {
	if !e.EventType.Valid() {
		return invalid("unknown event type %q", e.EventType)
	}
	if !e.Severity.Valid() {
		return invalid("unknown severity %q", e.Severity)
	}
	return nil
}

func (e CCTVEvent) Clone() CCTVEvent {
	if e.ZoneID != nil {
		v := *e.ZoneID
		e.ZoneID = &v
	}
	if e.ZoneName != nil {
		v := *e.ZoneName
		e.ZoneName = &v
	}
	if e.Metadata != nil {
		m := *e.Metadata
		if m.Confidence != nil {
			v := *m.Confidence
			m.Confidence = &v
		}
		if m.RecordingDuration != nil {
			v := *m.RecordingDuration
			m.RecordingDuration = &v
		}
		e.Metadata = &m
	}
	if e.AcknowledgedBy != nil {
		v := *e.AcknowledgedBy
		e.AcknowledgedBy = &v
	}
	if e.AcknowledgedAt != nil {
		v := *e.AcknowledgedAt
		e.AcknowledgedAt = &v
	}
	return e
}
