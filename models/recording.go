package models

import (
	"time"
)

type TriggerType string

const (
	TriggerManual     TriggerType = "manual"
	TriggerMotion     TriggerType = "motion"
	TriggerZoneBreach TriggerType = "zone_breach"
	TriggerIncident   TriggerType = "incident"
	TriggerScheduled  TriggerType = "scheduled"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerManual, TriggerMotion, TriggerZoneBreach, TriggerIncident, TriggerScheduled:
		return true
	}
	return false
}

type RecordingStatus string

const (
	RecordingActive     RecordingStatus = "recording"
	RecordingCompleted  RecordingStatus = "completed"
	RecordingFailed     RecordingStatus = "failed"
	RecordingProcessing RecordingStatus = "processing"
)

// Terminal reports whether no further transition is allowed.
func (s RecordingStatus) Terminal() bool {
	return s == RecordingCompleted || s == RecordingFailed
}

type RecordingSession struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CameraID        string          `json:"camera_id" gorm:"index;type:varchar(36);not null"`
	CameraName      string          `json:"camera_name"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Duration        *int            `json:"duration,omitempty"`         // seconds
	PlannedDuration *int            `json:"planned_duration,omitempty"` // seconds
	FileSize        *int64          `json:"file_size,omitempty"`
	StorageLocation string          `json:"storage_location"`
	TriggerType     TriggerType     `json:"trigger_type" gorm:"type:varchar(20);not null"`
	Status          RecordingStatus `json:"status" gorm:"type:varchar(20);index;not null"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	ThumbnailURL    string          `json:"thumbnail_url,omitempty"`
	VideoURL        string          `json:"video_url,omitempty"`
}

func (RecordingSession) TableName() string {
	return "cctv_recording_sessions"
}

// Complete ends an active session at the given time. It returns false and
// changes nothing when the session is not recording.
func (r *RecordingSession) Complete(at time.Time) bool {
	if r.Status != RecordingActive {
		return false
	}
	r.finish(at)
	r.Status = RecordingCompleted
	return true
}

// Fail moves a non-terminal session to failed.
func (r *RecordingSession) Fail(at time.Time, reason string) bool {
	if r.Status.Terminal() {
		return false
	}
	r.finish(at)
	r.Status = RecordingFailed
	r.FailureReason = reason
	return true
}

func (r *RecordingSession) finish(at time.Time) {
	if at.Before(r.StartTime) {
		at = r.StartTime
	}
	end := at
	duration := int(end.Sub(r.StartTime) / time.Second)
	r.EndTime = &end
	r.Duration = &duration
}

func (r RecordingSession) Clone() RecordingSession {
	if r.EndTime != nil {
		v := *r.EndTime
		r.EndTime = &v
	}
	if r.Duration != nil {
		v := *r.Duration
		r.Duration = &v
	}
	if r.PlannedDuration != nil {
		v := *r.PlannedDuration
		r.PlannedDuration = &v
	}
	if r.FileSize != nil {
		v := *r.FileSize
		r.FileSize = &v
	}
	return r
}

type StartRecordingInput struct {
	CameraID    string      `json:"camera_id" binding:"required"`
	Duration    *int        `json:"duration,omitempty"`
	TriggerType TriggerType `json:"trigger_type"`
}

func (in *StartRecordingInput) Normalize() error {
	if in.CameraID == "" {
		return invalid("camera_id is required")
	}
	if in.TriggerType == "" {
		in.TriggerType = TriggerManual
	}
	if !in.TriggerType.Valid() {
		return invalid("unknown trigger type %q", in.TriggerType)
	}
	if in.Duration != nil && *in.Duration <= 0 {
		return invalid("duration must be positive")
	}
	return nil
}

// NewSession builds the recording row for an accepted start request.
func (in StartRecordingInput) NewSession(camera Camera, id string, at time.Time, storage string) RecordingSession {
	s := RecordingSession{
		ID:              id,
		CameraID:        camera.ID,
		CameraName:      camera.Name,
		StartTime:       at,
		StorageLocation: storage,
		TriggerType:     in.TriggerType,
		Status:          RecordingActive,
	}
	if in.Duration != nil {
		d := *in.Duration
		s.PlannedDuration = &d
	}
	return s
}
