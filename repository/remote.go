package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"guardforce-cctv/be/cache"
	"guardforce-cctv/be/config"
	"guardforce-cctv/be/models"
)

const (
	snapshotPrefix = "cctv:snapshot:"
	snapshotTTL    = 24 * time.Hour
)

// RemoteRegistry talks to another instance of the CCTV API. Successful reads
// are kept in the KV as last-known-good snapshots and served with a
// *StaleError when the remote side is unreachable.
type RemoteRegistry struct {
	client *resty.Client
	kv     cache.KV
	logger *zap.Logger
}

func NewRemoteRegistry(cfg config.RemoteConfig, kv cache.KV, logger *zap.Logger) *RemoteRegistry {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}
	return &RemoteRegistry{client: client, kv: kv, logger: logger}
}

type camerasEnvelope struct {
	Cameras []models.Camera `json:"cameras"`
}

type cameraEnvelope struct {
	Camera models.Camera `json:"camera"`
}

type zonesEnvelope struct {
	Zones []models.GeofenceZone `json:"zones"`
}

type zoneEnvelope struct {
	Zone models.GeofenceZone `json:"zone"`
}

type eventsEnvelope struct {
	Events []models.CCTVEvent `json:"events"`
}

type eventEnvelope struct {
	Event models.CCTVEvent `json:"event"`
}

type recordingsEnvelope struct {
	Recordings []models.RecordingSession `json:"recordings"`
}

type recordingEnvelope struct {
	Recording models.RecordingSession `json:"recording"`
	Stopped   bool                    `json:"stopped"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (r *RemoteRegistry) ListCameras(ctx context.Context) ([]models.Camera, error) {
	var out camerasEnvelope
	err := r.read(ctx, "list cameras", "/cameras", nil, "cameras", &out)
	if err != nil && !IsStale(err) {
		return nil, err
	}
	return out.Cameras, err
}

func (r *RemoteRegistry) GetCamera(ctx context.Context, id string) (models.Camera, error) {
	var out cameraEnvelope
	err := r.read(ctx, "get camera", "/cameras/"+id, nil, "camera:"+id, &out)
	if err != nil && !IsStale(err) {
		return models.Camera{}, err
	}
	return out.Camera, err
}

func (r *RemoteRegistry) CreateCamera(ctx context.Context, in models.CameraInput) (models.Camera, error) {
	if err := in.Validate(); err != nil {
		return models.Camera{}, err
	}
	var out cameraEnvelope
	if err := r.write(ctx, "create camera", http.MethodPost, "/cameras", in, &out); err != nil {
		return models.Camera{}, err
	}
	return out.Camera, nil
}

func (r *RemoteRegistry) UpdateCamera(ctx context.Context, id string, patch models.CameraPatch) (models.Camera, error) {
	if err := patch.Validate(); err != nil {
		return models.Camera{}, err
	}
	var out cameraEnvelope
	if err := r.write(ctx, "update camera", http.MethodPut, "/cameras/"+id, patch, &out); err != nil {
		return models.Camera{}, err
	}
	return out.Camera, nil
}

func (r *RemoteRegistry) DeleteCamera(ctx context.Context, id string) error {
	return r.write(ctx, "delete camera", http.MethodDelete, "/cameras/"+id, nil, nil)
}

func (r *RemoteRegistry) ListZones(ctx context.Context) ([]models.GeofenceZone, error) {
	var out zonesEnvelope
	err := r.read(ctx, "list zones", "/geofence/zones", nil, "zones", &out)
	if err != nil && !IsStale(err) {
		return nil, err
	}
	return out.Zones, err
}

func (r *RemoteRegistry) GetZone(ctx context.Context, id string) (models.GeofenceZone, error) {
	var out zoneEnvelope
	err := r.read(ctx, "get zone", "/geofence/zones/"+id, nil, "zone:"+id, &out)
	if err != nil && !IsStale(err) {
		return models.GeofenceZone{}, err
	}
	return out.Zone, err
}

func (r *RemoteRegistry) CreateZone(ctx context.Context, in models.ZoneInput) (models.GeofenceZone, error) {
	if err := in.Validate(); err != nil {
		return models.GeofenceZone{}, err
	}
	var out zoneEnvelope
	if err := r.write(ctx, "create zone", http.MethodPost, "/geofence/zones", in, &out); err != nil {
		return models.GeofenceZone{}, err
	}
	return out.Zone, nil
}

func (r *RemoteRegistry) UpdateZone(ctx context.Context, id string, patch models.ZonePatch) (models.GeofenceZone, error) {
	if err := patch.Validate(); err != nil {
		return models.GeofenceZone{}, err
	}
	var out zoneEnvelope
	if err := r.write(ctx, "update zone", http.MethodPut, "/geofence/zones/"+id, patch, &out); err != nil {
		return models.GeofenceZone{}, err
	}
	return out.Zone, nil
}

func (r *RemoteRegistry) DeleteZone(ctx context.Context, id string) error {
	return r.write(ctx, "delete zone", http.MethodDelete, "/geofence/zones/"+id, nil, nil)
}

func (r *RemoteRegistry) ListEvents(ctx context.Context, filter EventFilter) ([]models.CCTVEvent, error) {
	query := map[string]string{}
	key := "events"
	if filter.Limit > 0 {
		query["limit"] = strconv.Itoa(filter.Limit)
		key += ":limit=" + query["limit"]
	}
	if filter.CameraID != "" {
		query["camera_id"] = filter.CameraID
		key += ":camera=" + filter.CameraID
	}
	if filter.UnacknowledgedOnly {
		query["unacknowledged"] = "true"
		key += ":unacked"
	}
	var out eventsEnvelope
	err := r.read(ctx, "list events", "/events", query, key, &out)
	if err != nil && !IsStale(err) {
		return nil, err
	}
	return out.Events, err
}

func (r *RemoteRegistry) CreateEvent(ctx context.Context, event models.CCTVEvent) (models.CCTVEvent, error) {
	if err := event.Validate(); err != nil {
		return models.CCTVEvent{}, err
	}
	var out eventEnvelope
	if err := r.write(ctx, "create event", http.MethodPost, "/events", event, &out); err != nil {
		return models.CCTVEvent{}, err
	}
	return out.Event, nil
}

// AcknowledgeEvent is attributed by the remote side to the API token's
// identity; actor travels along for its audit log.
func (r *RemoteRegistry) AcknowledgeEvent(ctx context.Context, id, actor string) (models.CCTVEvent, error) {
	var out eventEnvelope
	body := map[string]string{"acknowledged_by": actor}
	if err := r.write(ctx, "acknowledge event", http.MethodPut, "/events/"+id+"/acknowledge", body, &out); err != nil {
		return models.CCTVEvent{}, err
	}
	return out.Event, nil
}

func (r *RemoteRegistry) ListRecordings(ctx context.Context, cameraID string) ([]models.RecordingSession, error) {
	query := map[string]string{}
	key := "recordings"
	if cameraID != "" {
		query["camera_id"] = cameraID
		key += ":camera=" + cameraID
	}
	var out recordingsEnvelope
	err := r.read(ctx, "list recordings", "/recordings", query, key, &out)
	if err != nil && !IsStale(err) {
		return nil, err
	}
	return out.Recordings, err
}

func (r *RemoteRegistry) StartRecording(ctx context.Context, in models.StartRecordingInput) (models.RecordingSession, error) {
	if err := in.Normalize(); err != nil {
		return models.RecordingSession{}, err
	}
	var out recordingEnvelope
	if err := r.write(ctx, "start recording", http.MethodPost, "/recordings/start", in, &out); err != nil {
		return models.RecordingSession{}, err
	}
	return out.Recording, nil
}

func (r *RemoteRegistry) StopRecording(ctx context.Context, id string) (models.RecordingSession, bool, error) {
	var out recordingEnvelope
	if err := r.write(ctx, "stop recording", http.MethodPut, "/recordings/"+id+"/stop", nil, &out); err != nil {
		return models.RecordingSession{}, false, err
	}
	return out.Recording, out.Stopped, nil
}

func (r *RemoteRegistry) FailRecording(ctx context.Context, id, reason string) (models.RecordingSession, error) {
	var out recordingEnvelope
	body := map[string]string{"reason": reason}
	if err := r.write(ctx, "fail recording", http.MethodPut, "/recordings/"+id+"/fail", body, &out); err != nil {
		return models.RecordingSession{}, err
	}
	return out.Recording, nil
}

func (r *RemoteRegistry) ControlPTZ(ctx context.Context, cameraID string, command models.PTZCommand, value *float64) error {
	if !command.Valid() {
		return fmt.Errorf("%q: %w", command, ErrInvalidPTZCommand)
	}
	body := map[string]interface{}{"command": command}
	if value != nil {
		body["value"] = *value
	}
	return r.write(ctx, "control ptz", http.MethodPost, "/cameras/"+cameraID+"/ptz", body, nil)
}

func (r *RemoteRegistry) SetMotionDetection(ctx context.Context, cameraID string, enabled bool, sensitivity *int) (models.Camera, error) {
	if err := checkSensitivity(sensitivity); err != nil {
		return models.Camera{}, err
	}
	body := map[string]interface{}{"enabled": enabled}
	if sensitivity != nil {
		body["sensitivity"] = *sensitivity
	}
	var out cameraEnvelope
	if err := r.write(ctx, "set motion detection", http.MethodPut, "/cameras/"+cameraID+"/motion-detection", body, &out); err != nil {
		return models.Camera{}, err
	}
	return out.Camera, nil
}

func (r *RemoteRegistry) SystemHealth(ctx context.Context) (models.SystemHealth, error) {
	var out models.SystemHealth
	err := r.read(ctx, "system health", "/system/health", nil, "health", &out)
	if err != nil && !IsStale(err) {
		return models.SystemHealth{}, err
	}
	return out, err
}

// CaptureScreenshot asks the remote side to grab a frame.
func (r *RemoteRegistry) CaptureScreenshot(ctx context.Context, cameraID string) (string, error) {
	var out struct {
		ScreenshotURL string `json:"screenshot_url"`
	}
	if err := r.write(ctx, "capture screenshot", http.MethodPost, "/cameras/"+cameraID+"/screenshot", nil, &out); err != nil {
		return "", err
	}
	return out.ScreenshotURL, nil
}

// read performs a GET and refreshes the snapshot under key. On failure it
// decodes the snapshot into out and returns a *StaleError, or the original
// error when no snapshot exists. Not found is never served from a snapshot.
func (r *RemoteRegistry) read(ctx context.Context, op, path string, query map[string]string, key string, out interface{}) error {
	resp, err := r.client.R().SetContext(ctx).SetQueryParams(query).Get(path)
	callErr := r.check(op, resp, err)
	if callErr == nil {
		body := resp.Body()
		if err := json.Unmarshal(body, out); err != nil {
			return &RemoteError{Op: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
		}
		if err := r.kv.Set(ctx, snapshotPrefix+key, string(body), snapshotTTL); err != nil {
			r.logger.Warn("Failed to store registry snapshot", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	if errors.Is(callErr, ErrNotFound) || errors.Is(callErr, ErrInvalidInput) {
		return callErr
	}

	cached, err := r.kv.Get(context.WithoutCancel(ctx), snapshotPrefix+key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("Failed to load registry snapshot", zap.String("key", key), zap.Error(err))
		}
		return callErr
	}
	if err := json.Unmarshal([]byte(cached), out); err != nil {
		r.logger.Warn("Discarding unreadable registry snapshot", zap.String("key", key), zap.Error(err))
		return callErr
	}
	r.logger.Warn("Serving registry snapshot", zap.String("op", op), zap.Error(callErr))
	return &StaleError{Op: op, Err: callErr}
}

func (r *RemoteRegistry) write(ctx context.Context, op, method, path string, body, out interface{}) error {
	req := r.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err := r.check(op, resp, err); err != nil {
		return err
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// check maps transport failures and error statuses. Statuses the API uses
// for domain errors come back as the matching sentinel.
func (r *RemoteRegistry) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	if resp.IsSuccess() {
		return nil
	}
	msg := string(resp.Body())
	var env errorEnvelope
	if json.Unmarshal(resp.Body(), &env) == nil && env.Error != "" {
		msg = env.Error
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, msg, ErrNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %s: %w", op, msg, ErrInvalidInput)
	case http.StatusConflict:
		return fmt.Errorf("%s: %s: %w", op, msg, ErrRecordingInProgress)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %s: %w", op, msg, ErrNotPTZCamera)
	}
	return &RemoteError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
}
