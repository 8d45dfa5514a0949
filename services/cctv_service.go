package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

// ScreenshotCapturer is implemented by registries that can grab frames
// themselves, such as the remote registry.
type ScreenshotCapturer interface {
	CaptureScreenshot(ctx context.Context, cameraID string) (string, error)
}

type Snapshotter interface {
	Capture(ctx context.Context, camera models.Camera) (string, error)
}

// Scheduler runs f on its own goroutine after d and returns a function that
// cancels it.
type Scheduler func(d time.Duration, f func()) (cancel func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

const autoStopTimeout = 10 * time.Second

// CCTVService is the command surface the handlers use. It keeps the media
// server in step with recording state.
type CCTVService struct {
	registry  repository.Registry
	media     MediaServer
	snapshots Snapshotter
	logger    *zap.Logger
	schedule  Scheduler

	mu     sync.Mutex
	timers map[string]func() bool // recording_id -> cancel
}

func NewCCTVService(registry repository.Registry, media MediaServer, snapshots Snapshotter, logger *zap.Logger) *CCTVService {
	if media == nil {
		media = NoopMediaServer{}
	}
	return &CCTVService{
		registry:  registry,
		media:     media,
		snapshots: snapshots,
		logger:    logger.Named("cctv"),
		schedule:  afterFunc,
		timers:    make(map[string]func() bool),
	}
}

func (s *CCTVService) SetMotionDetection(ctx context.Context, cameraID string, enabled bool, sensitivity *int) (models.Camera, error) {
	camera, err := s.registry.SetMotionDetection(ctx, cameraID, enabled, sensitivity)
	if err != nil {
		return camera, err
	}
	s.logger.Info("Motion detection updated", zap.String("camera_id", cameraID), zap.Bool("enabled", enabled))
	return camera, nil
}

func (s *CCTVService) EnableMotionDetection(ctx context.Context, cameraID string, sensitivity *int) (models.Camera, error) {
	return s.SetMotionDetection(ctx, cameraID, true, sensitivity)
}

func (s *CCTVService) DisableMotionDetection(ctx context.Context, cameraID string) (models.Camera, error) {
	return s.SetMotionDetection(ctx, cameraID, false, nil)
}

// StartRecording opens a session and turns on recording at the media
// server. If the camera cannot be read back or the media server refuses, the
// session is marked failed and returned together with the error. A planned
// duration schedules a stop.
func (s *CCTVService) StartRecording(ctx context.Context, in models.StartRecordingInput) (models.RecordingSession, error) {
	session, err := s.registry.StartRecording(ctx, in)
	if err != nil {
		return session, err
	}

	camera, err := s.registry.GetCamera(ctx, session.CameraID)
	if err != nil && !repository.IsStale(err) {
		s.logger.Error("Recording camera unavailable",
			zap.String("camera_id", session.CameraID),
			zap.String("recording_id", session.ID),
			zap.Error(err))
		return s.abortRecording(ctx, session, err)
	}
	if err := s.media.SetRecording(ctx, camera, true); err != nil {
		s.logger.Error("Media server refused recording",
			zap.String("camera_id", camera.ID),
			zap.String("recording_id", session.ID),
			zap.Error(err))
		return s.abortRecording(ctx, session, err)
	}

	if session.PlannedDuration != nil {
		id := session.ID
		s.mu.Lock()
		s.timers[id] = s.schedule(time.Duration(*session.PlannedDuration)*time.Second, func() { s.autoStop(id) })
		s.mu.Unlock()
	}

	s.logger.Info("Recording started",
		zap.String("camera_id", camera.ID),
		zap.String("recording_id", session.ID),
		zap.String("trigger", string(session.TriggerType)))
	return session, nil
}

// abortRecording fails a session that could not be started so the camera
// does not stay locked by it.
func (s *CCTVService) abortRecording(ctx context.Context, session models.RecordingSession, cause error) (models.RecordingSession, error) {
	failed, err := s.registry.FailRecording(ctx, session.ID, cause.Error())
	if err != nil {
		s.logger.Error("Failed to mark recording failed", zap.String("recording_id", session.ID), zap.Error(err))
	} else {
		session = failed
	}
	return session, fmt.Errorf("start recording: %w", cause)
}

func (s *CCTVService) autoStop(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), autoStopTimeout)
	defer cancel()
	if _, stopped, err := s.StopRecording(ctx, id); err != nil {
		s.logger.Error("Planned stop failed", zap.String("recording_id", id), zap.Error(err))
	} else if stopped {
		s.logger.Info("Planned recording duration reached", zap.String("recording_id", id))
	}
}

func (s *CCTVService) cancelTimer(id string) {
	s.mu.Lock()
	cancel, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopRecording completes the session. stopped is false when it had already
// ended, in which case the media server is left alone.
func (s *CCTVService) StopRecording(ctx context.Context, id string) (models.RecordingSession, bool, error) {
	s.cancelTimer(id)
	session, stopped, err := s.registry.StopRecording(ctx, id)
	if err != nil || !stopped {
		return session, stopped, err
	}
	s.recordOff(ctx, session)
	s.logger.Info("Recording stopped", zap.String("recording_id", id), zap.Int("duration", derefInt(session.Duration)))
	return session, true, nil
}

func (s *CCTVService) FailRecording(ctx context.Context, id, reason string) (models.RecordingSession, error) {
	s.cancelTimer(id)
	session, err := s.registry.FailRecording(ctx, id, reason)
	if err != nil {
		return session, err
	}
	s.recordOff(ctx, session)
	s.logger.Warn("Recording failed", zap.String("recording_id", id), zap.String("reason", reason))
	return session, nil
}

// DeleteCamera removes the camera, cancels planned stops of its sessions and
// drops its relay path. A media server failure is logged, not returned.
func (s *CCTVService) DeleteCamera(ctx context.Context, id string) error {
	recordings, err := s.registry.ListRecordings(ctx, id)
	if err != nil && !repository.IsStale(err) {
		s.logger.Warn("Could not list recordings of deleted camera", zap.String("camera_id", id), zap.Error(err))
	}
	if err := s.registry.DeleteCamera(ctx, id); err != nil {
		return err
	}
	for _, r := range recordings {
		if r.Status == models.RecordingActive {
			s.cancelTimer(r.ID)
		}
	}
	if err := s.media.RemovePath(ctx, id); err != nil {
		s.logger.Warn("Failed to remove media path", zap.String("camera_id", id), zap.Error(err))
	}
	s.logger.Info("Camera deleted", zap.String("camera_id", id))
	return nil
}

func (s *CCTVService) recordOff(ctx context.Context, session models.RecordingSession) {
	camera, err := s.registry.GetCamera(ctx, session.CameraID)
	if err != nil && !repository.IsStale(err) {
		s.logger.Warn("Recording camera unavailable", zap.String("camera_id", session.CameraID), zap.Error(err))
		return
	}
	if err := s.media.SetRecording(ctx, camera, false); err != nil {
		s.logger.Warn("Failed to stop media server recording", zap.String("camera_id", camera.ID), zap.Error(err))
	}
}

// ControlPTZ forwards a command. Rejections are logged and returned.
func (s *CCTVService) ControlPTZ(ctx context.Context, cameraID string, command models.PTZCommand, value *float64) error {
	err := s.registry.ControlPTZ(ctx, cameraID, command, value)
	switch {
	case err == nil:
		s.logger.Info("PTZ command sent", zap.String("camera_id", cameraID), zap.String("command", string(command)))
	case errors.Is(err, repository.ErrNotPTZCamera), errors.Is(err, repository.ErrInvalidPTZCommand):
		s.logger.Warn("PTZ command rejected", zap.String("camera_id", cameraID), zap.String("command", string(command)), zap.Error(err))
	}
	return err
}

func (s *CCTVService) CaptureScreenshot(ctx context.Context, cameraID string) (string, error) {
	if c, ok := s.registry.(ScreenshotCapturer); ok {
		return c.CaptureScreenshot(ctx, cameraID)
	}
	camera, err := s.registry.GetCamera(ctx, cameraID)
	if err != nil && !repository.IsStale(err) {
		return "", err
	}
	if s.snapshots == nil {
		return "", fmt.Errorf("camera %q: %w", cameraID, ErrStreamUnavailable)
	}
	return s.snapshots.Capture(ctx, camera)
}

func (s *CCTVService) StreamURL(ctx context.Context, cameraID string) (string, error) {
	camera, err := s.registry.GetCamera(ctx, cameraID)
	if err != nil && !repository.IsStale(err) {
		return "", err
	}
	return s.media.EnsurePath(ctx, camera)
}

func (s *CCTVService) StreamHealth(ctx context.Context) (map[string]bool, error) {
	return s.media.PathHealth(ctx)
}

// SystemHealth returns the dashboard counters. A stale error comes back with
// usable data.
func (s *CCTVService) SystemHealth(ctx context.Context) (models.SystemHealth, error) {
	health, err := s.registry.SystemHealth(ctx)
	if repository.IsStale(err) {
		s.logger.Warn("Serving stale system health", zap.Error(err))
	}
	return health, err
}

func (s *CCTVService) AcknowledgeEvent(ctx context.Context, id, actor string) (models.CCTVEvent, error) {
	event, err := s.registry.AcknowledgeEvent(ctx, id, actor)
	switch {
	case err == nil:
		s.logger.Info("Event acknowledged", zap.String("event_id", id), zap.String("actor", actor))
	case repository.IsStale(err):
		s.logger.Warn("Acknowledgement served from stale data", zap.String("event_id", id), zap.Error(err))
	}
	return event, err
}

// Close cancels pending planned stops.
func (s *CCTVService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
