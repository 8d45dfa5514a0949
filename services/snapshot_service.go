package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/models"
)

const captureTimeout = 15 * time.Second

// CommandRunner runs an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SnapshotService grabs a single frame from a camera's RTSP source with
// ffmpeg and stores it under the public snapshot directory.
type SnapshotService struct {
	config config.SnapshotConfig
	run    CommandRunner
	logger *zap.Logger
}

func NewSnapshotService(cfg config.SnapshotConfig, logger *zap.Logger) *SnapshotService {
	if err := os.MkdirAll(cfg.OutputPath, 0755); err != nil {
		logger.Warn("Failed to create snapshot directory", zap.String("path", cfg.OutputPath), zap.Error(err))
	}
	return &SnapshotService{config: cfg, run: execRunner, logger: logger.Named("snapshot")}
}

// Capture returns the public URL of a fresh frame from camera.
func (s *SnapshotService) Capture(ctx context.Context, camera models.Camera) (string, error) {
	if camera.RTSPUrl == "" {
		return "", fmt.Errorf("camera %q: %w", camera.ID, ErrStreamUnavailable)
	}

	filename := fmt.Sprintf("%s-%s.jpg", camera.ID, uuid.NewString())
	output := filepath.Join(s.config.OutputPath, filename)

	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	out, err := s.run(ctx, "ffmpeg",
		"-rtsp_transport", "tcp",
		"-i", camera.RTSPUrl,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		output,
	)
	if err != nil {
		s.logger.Warn("Screenshot capture failed",
			zap.String("camera_id", camera.ID),
			zap.ByteString("ffmpeg_output", tail(out, 512)),
			zap.Error(err))
		return "", fmt.Errorf("%w: ffmpeg: %v", ErrMediaServer, err)
	}

	url := path.Join(s.config.PublicPath, filename)
	s.logger.Info("Screenshot captured", zap.String("camera_id", camera.ID), zap.String("url", url))
	return url, nil
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}
