package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/models"
)

var (
	ErrStreamUnavailable = errors.New("camera has no stream source")
	ErrMediaServer       = errors.New("media server error")
)

// MediaServer relays camera RTSP sources as HLS and toggles recording.
type MediaServer interface {
	// EnsurePath configures the camera's relay path and returns its HLS URL.
	EnsurePath(ctx context.Context, camera models.Camera) (string, error)
	SetRecording(ctx context.Context, camera models.Camera, enabled bool) error
	RemovePath(ctx context.Context, cameraID string) error
	// PathHealth reports, per configured camera, whether the server lists
	// its path as live.
	PathHealth(ctx context.Context) (map[string]bool, error)
}

// MediaMTXServer drives a MediaMTX instance through its v2 control API.
type MediaMTXServer struct {
	config      config.MediaMTXConfig
	client      *resty.Client
	logger      *zap.Logger
	activePaths map[string]string // camera_id -> path_name
	mu          sync.RWMutex
}

func NewMediaMTXServer(cfg config.MediaMTXConfig, logger *zap.Logger) *MediaMTXServer {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s:%s", cfg.Host, cfg.APIPort)).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	return &MediaMTXServer{
		config:      cfg,
		client:      client,
		logger:      logger.Named("mediamtx"),
		activePaths: make(map[string]string),
	}
}

func PathName(cameraID string) string {
	return "cam-" + cameraID
}

func (s *MediaMTXServer) hlsURL(pathName string) string {
	return fmt.Sprintf("http://%s:%s/%s/index.m3u8", s.config.PublicHost, s.config.HTTPPort, pathName)
}

func (s *MediaMTXServer) patch(ctx context.Context, paths map[string]interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"paths": paths}).
		Post("/v2/config/patch")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaServer, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d: %s", ErrMediaServer, resp.StatusCode(), resp.String())
	}
	return nil
}

func pathConfig(camera models.Camera, record bool) map[string]interface{} {
	return map[string]interface{}{
		"source":                     camera.RTSPUrl,
		"sourceOnDemand":             !record,
		"sourceOnDemandStartTimeout": "10s",
		"sourceOnDemandCloseAfter":   "10s",
		"sourceProtocol":             "tcp",
		"record":                     record,
	}
}

func (s *MediaMTXServer) EnsurePath(ctx context.Context, camera models.Camera) (string, error) {
	if camera.RTSPUrl == "" {
		return "", fmt.Errorf("camera %q: %w", camera.ID, ErrStreamUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if pathName, ok := s.activePaths[camera.ID]; ok {
		return s.hlsURL(pathName), nil
	}
	pathName := PathName(camera.ID)
	if err := s.patch(ctx, map[string]interface{}{pathName: pathConfig(camera, false)}); err != nil {
		return "", err
	}
	s.activePaths[camera.ID] = pathName
	s.logger.Info("Path configured",
		zap.String("camera_id", camera.ID),
		zap.String("path", pathName),
		zap.String("hls_url", s.hlsURL(pathName)))
	return s.hlsURL(pathName), nil
}

func (s *MediaMTXServer) SetRecording(ctx context.Context, camera models.Camera, enabled bool) error {
	if camera.RTSPUrl == "" {
		return fmt.Errorf("camera %q: %w", camera.ID, ErrStreamUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pathName := PathName(camera.ID)
	if err := s.patch(ctx, map[string]interface{}{pathName: pathConfig(camera, enabled)}); err != nil {
		return err
	}
	s.activePaths[camera.ID] = pathName
	s.logger.Info("Recording toggled", zap.String("camera_id", camera.ID), zap.Bool("record", enabled))
	return nil
}

func (s *MediaMTXServer) RemovePath(ctx context.Context, cameraID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pathName, ok := s.activePaths[cameraID]
	if !ok {
		return nil
	}
	if err := s.patch(ctx, map[string]interface{}{pathName: nil}); err != nil {
		return err
	}
	delete(s.activePaths, cameraID)
	s.logger.Info("Path removed", zap.String("camera_id", cameraID), zap.String("path", pathName))
	return nil
}

type pathsList struct {
	Items map[string]interface{} `json:"items"`
}

func (s *MediaMTXServer) PathHealth(ctx context.Context) (map[string]bool, error) {
	var list pathsList
	resp, err := s.client.R().SetContext(ctx).SetResult(&list).Get("/v2/paths/list")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	health := make(map[string]bool, len(s.activePaths))
	for cameraID, pathName := range s.activePaths {
		_, live := list.Items[pathName]
		health[cameraID] = err == nil && live
	}
	if err != nil {
		return health, fmt.Errorf("%w: %v", ErrMediaServer, err)
	}
	return health, nil
}

// NoopMediaServer is used when no media server is configured. Streams are
// served from the camera's own stream_url.
type NoopMediaServer struct{}

func (NoopMediaServer) EnsurePath(_ context.Context, camera models.Camera) (string, error) {
	if camera.StreamURL == "" {
		return "", fmt.Errorf("camera %q: %w", camera.ID, ErrStreamUnavailable)
	}
	return camera.StreamURL, nil
}

func (NoopMediaServer) SetRecording(context.Context, models.Camera, bool) error { return nil }

func (NoopMediaServer) RemovePath(context.Context, string) error { return nil }

func (NoopMediaServer) PathHealth(context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}
