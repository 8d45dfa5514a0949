package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/middleware"
	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noEvents struct{}

func (noEvents) Next(context.Context) (models.CCTVEvent, bool, error) {
	return models.CCTVEvent{}, false, nil
}

type testEnv struct {
	cfg        *config.Config
	router     *gin.Engine
	registry   repository.Registry
	users      *repository.MemoryUserRepository
	dispatcher *services.Dispatcher
	hub        *services.Hub
}

func newTestEnv(t *testing.T, registry repository.Registry) *testEnv {
	t.Helper()
	if registry == nil {
		registry = repository.NewMemoryRegistry(nil)
	}
	cfg := &config.Config{
		JWT:      config.JWTConfig{Secret: "handler-secret", Expiry: "1h"},
		Snapshot: config.SnapshotConfig{OutputPath: t.TempDir(), PublicPath: "/snapshots"},
	}
	logger := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	hub := services.NewHub(logger)
	go hub.Run(ctx)

	dispatcher := services.NewDispatcher(time.Hour, noEvents{}, registry, logger, services.WithAlerters(hub))
	t.Cleanup(func() {
		dispatcher.Close()
		cancel()
	})

	users := repository.NewMemoryUserRepository()
	require.NoError(t, repository.EnsureDefaultAdmin(context.Background(), users, logger))

	cctv := services.NewCCTVService(registry, services.NoopMediaServer{}, nil, logger)
	monitor := services.NewGeofenceMonitor(registry, dispatcher, cctv, logger)
	h := Handlers{
		Auth:      NewAuthHandler(users, cfg.JWT, logger),
		Camera:    NewCameraHandler(registry, cctv, logger),
		Zone:      NewZoneHandler(registry, monitor, logger),
		Event:     NewEventHandler(registry, cctv, dispatcher, hub, logger),
		Recording: NewRecordingHandler(registry, cctv, logger),
		System:    NewSystemHandler(cctv, dispatcher, hub, logger),
	}
	return &testEnv{
		cfg:        cfg,
		router:     SetupRouter(cfg, h, logger),
		registry:   registry,
		users:      users,
		dispatcher: dispatcher,
		hub:        hub,
	}
}

func (e *testEnv) token(t *testing.T, role models.Role) string {
	t.Helper()
	tok, err := middleware.IssueToken(e.cfg.JWT.Secret, time.Hour, models.User{ID: 1, Email: string(role) + "@guardforce.demo", Role: role})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (e *testEnv) createCamera(t *testing.T, in models.CameraInput) models.Camera {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/cctv/cameras", in, models.RoleAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct{ Camera models.Camera }
	decode(t, w, &resp)
	return resp.Camera
}

func TestAuth_LoginAndMe(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email: repository.DefaultAdminEmail, Password: repository.DefaultAdminPassword,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login LoginResponse
	decode(t, w, &login)
	assert.Equal(t, models.RoleAdmin, login.User.Role)
	require.NotEmpty(t, login.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var me UserResponse
	decode(t, w, &me)
	assert.Equal(t, repository.DefaultAdminEmail, me.Email)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email: repository.DefaultAdminEmail, Password: "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "not-an-email", Password: "secret1"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/logout", nil, models.RoleGuard)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCameras_CRUDAndRoles(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/cctv/cameras", nil, "").Code)
	assert.Equal(t, http.StatusForbidden,
		env.do(t, http.MethodPost, "/api/v1/cctv/cameras", models.CameraInput{Name: "X"}, models.RoleGuard).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/v1/cctv/cameras", models.CameraInput{}, models.RoleAdmin).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/v1/cctv/cameras", models.CameraInput{Name: "X", Latitude: 95}, models.RoleAdmin).Code)

	cam := env.createCamera(t, models.CameraInput{Name: "Main Gate", Latitude: -6.2088, Longitude: 106.8456})
	assert.Equal(t, models.CameraOffline, cam.Status)
	assert.Equal(t, models.CameraFixed, cam.Type)

	w := env.do(t, http.MethodGet, "/api/v1/cctv/cameras", nil, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct{ Cameras []models.Camera }
	decode(t, w, &list)
	assert.Len(t, list.Cameras, 1)

	status := models.CameraOnline
	w = env.do(t, http.MethodPut, "/api/v1/cctv/cameras/"+cam.ID, models.CameraPatch{Status: &status}, models.RoleSupervisor)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct{ Camera models.Camera }
	decode(t, w, &got)
	assert.Equal(t, models.CameraOnline, got.Camera.Status)
	assert.Equal(t, "Main Gate", got.Camera.Name)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/cctv/cameras/missing", nil, models.RoleGuard).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/v1/cctv/cameras/"+cam.ID, nil, models.RoleAdmin).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/v1/cctv/cameras/"+cam.ID, nil, models.RoleAdmin).Code)
}

func TestCameraCommands_StatusMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	ptz := env.createCamera(t, models.CameraInput{Name: "Gate PTZ", Type: models.CameraPTZ, StreamURL: "http://cdn/gate.m3u8"})
	dome := env.createCamera(t, models.CameraInput{Name: "Lobby", Type: models.CameraDome})
	op := models.RoleCCTVOperator

	w := env.do(t, http.MethodPost, "/api/v1/cctv/cameras/"+ptz.ID+"/ptz", PTZRequest{Command: models.PTZPanLeft}, op)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/cctv/cameras/"+dome.ID+"/ptz", PTZRequest{Command: models.PTZPanLeft}, op)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/cctv/cameras/"+ptz.ID+"/ptz", PTZRequest{Command: "spin"}, op)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/cctv/cameras/"+ptz.ID+"/ptz", PTZRequest{Command: models.PTZPanLeft}, models.RoleGuard)
	assert.Equal(t, http.StatusForbidden, w.Code)

	on, bad, good := true, 150, 60
	w = env.do(t, http.MethodPut, "/api/v1/cctv/cameras/"+dome.ID+"/motion-detection", MotionDetectionRequest{Enabled: &on, Sensitivity: &bad}, op)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, "/api/v1/cctv/cameras/"+dome.ID+"/motion-detection", MotionDetectionRequest{Enabled: &on, Sensitivity: &good}, op)
	require.Equal(t, http.StatusOK, w.Code)
	var cam struct{ Camera models.Camera }
	decode(t, w, &cam)
	assert.True(t, cam.Camera.HasMotionDetection)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/cameras/"+ptz.ID+"/stream", nil, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http://cdn/gate.m3u8")
	w = env.do(t, http.MethodGet, "/api/v1/cctv/cameras/"+dome.ID+"/stream", nil, models.RoleGuard)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/cctv/cameras/"+dome.ID+"/screenshot", nil, op)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRecordings(t *testing.T) {
	env := newTestEnv(t, nil)
	cam := env.createCamera(t, models.CameraInput{Name: "Gate"})
	op := models.RoleCCTVOperator

	w := env.do(t, http.MethodPost, "/api/v1/cctv/recordings/start", models.StartRecordingInput{CameraID: cam.ID}, op)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started struct{ Recording models.RecordingSession }
	decode(t, w, &started)
	assert.Equal(t, models.RecordingActive, started.Recording.Status)
	assert.Equal(t, models.TriggerManual, started.Recording.TriggerType)

	w = env.do(t, http.MethodPost, "/api/v1/cctv/recordings/start", models.StartRecordingInput{CameraID: cam.ID}, op)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/cctv/recordings/start", models.StartRecordingInput{CameraID: "missing"}, op)
	assert.Equal(t, http.StatusNotFound, w.Code)

	stop := func() (models.RecordingSession, bool) {
		w := env.do(t, http.MethodPut, "/api/v1/cctv/recordings/"+started.Recording.ID+"/stop", nil, op)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Recording models.RecordingSession
			Stopped   bool
		}
		decode(t, w, &resp)
		return resp.Recording, resp.Stopped
	}
	s, stopped := stop()
	assert.True(t, stopped)
	assert.Equal(t, models.RecordingCompleted, s.Status)
	_, stopped = stop()
	assert.False(t, stopped)

	w = env.do(t, http.MethodPut, "/api/v1/cctv/recordings/nope/stop", nil, op)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/recordings?camera_id="+cam.ID, nil, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct{ Recordings []models.RecordingSession }
	decode(t, w, &list)
	assert.Len(t, list.Recordings, 1)
}

func TestEvents_ReportListAcknowledge(t *testing.T) {
	env := newTestEnv(t, nil)
	cam := env.createCamera(t, models.CameraInput{Name: "Gate"})
	op := models.RoleCCTVOperator

	for _, sev := range []models.Severity{models.SeverityInfo, models.SeverityCritical} {
		w := env.do(t, http.MethodPost, "/api/v1/cctv/events", ReportEventRequest{
			CameraID: cam.ID, EventType: models.EventMotionDetected, Severity: sev,
		}, op)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := env.do(t, http.MethodPost, "/api/v1/cctv/events", ReportEventRequest{
		CameraID: cam.ID, EventType: "meteor", Severity: models.SeverityInfo,
	}, op)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/events?limit=1", nil, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct{ Events []models.CCTVEvent }
	decode(t, w, &list)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Gate", list.Events[0].CameraName)

	w = env.do(t, http.MethodPut, "/api/v1/cctv/events/"+list.Events[0].ID+"/acknowledge", nil, op)
	require.Equal(t, http.StatusOK, w.Code)
	var acked struct{ Event models.CCTVEvent }
	decode(t, w, &acked)
	assert.True(t, acked.Event.Acknowledged)
	assert.Equal(t, "cctv_operator@guardforce.demo", *acked.Event.AcknowledgedBy)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/events?unacknowledged=true", nil, models.RoleGuard)
	decode(t, w, &list)
	assert.Len(t, list.Events, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/cctv/events?limit=ten", nil, models.RoleGuard).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/v1/cctv/events/nope/acknowledge", nil, op).Code)
}

func TestEvents_ReportWithoutCamera(t *testing.T) {
	env := newTestEnv(t, nil)
	radius := 25.0
	w := env.do(t, http.MethodPost, "/api/v1/cctv/geofence/zones", models.ZoneInput{
		Name: "Roof", Type: models.ZoneRestricted,
		Center: &models.LatLng{Lat: 1, Lng: 1}, Radius: &radius,
	}, models.RoleAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var zone struct{ Zone models.GeofenceZone }
	decode(t, w, &zone)

	w = env.do(t, http.MethodPost, "/api/v1/cctv/events", ReportEventRequest{
		ZoneID: &zone.Zone.ID, EventType: models.EventZoneBreach, Severity: models.SeverityWarning,
	}, models.RoleCCTVOperator)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ Event models.CCTVEvent }
	decode(t, w, &created)
	assert.Empty(t, created.Event.CameraID)
	require.NotNil(t, created.Event.ZoneName)
	assert.Equal(t, "Roof", *created.Event.ZoneName)

	w = env.do(t, http.MethodPost, "/api/v1/cctv/events", ReportEventRequest{
		CameraID: "missing", EventType: models.EventZoneBreach, Severity: models.SeverityWarning,
	}, models.RoleCCTVOperator)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCameras_DeleteEndsActiveRecording(t *testing.T) {
	env := newTestEnv(t, nil)
	cam := env.createCamera(t, models.CameraInput{Name: "Gate", Status: models.CameraOnline})

	w := env.do(t, http.MethodPost, "/api/v1/cctv/recordings/start", models.StartRecordingInput{CameraID: cam.ID}, models.RoleCCTVOperator)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/v1/cctv/cameras/"+cam.ID, nil, models.RoleAdmin).Code)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/recordings?camera_id="+cam.ID, nil, models.RoleGuard)
	var list struct{ Recordings []models.RecordingSession }
	decode(t, w, &list)
	require.Len(t, list.Recordings, 1)
	assert.Equal(t, models.RecordingFailed, list.Recordings[0].Status)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/system/health", nil, models.RoleGuard)
	var health models.SystemHealth
	decode(t, w, &health)
	assert.Equal(t, 0, health.TotalCameras)
	assert.Equal(t, 0, health.RecordingCameras)
}

func TestZones_AndGeofenceCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	cam := env.createCamera(t, models.CameraInput{Name: "Gate", Latitude: -6.2088, Longitude: 106.8456})

	radius := 40.0
	w := env.do(t, http.MethodPost, "/api/v1/cctv/geofence/zones", models.ZoneInput{
		Name: "Perimeter", Type: models.ZoneRestricted, Priority: models.PriorityHigh,
		Center: &models.LatLng{Lat: -6.2088, Lng: 106.8456}, Radius: &radius,
		CameraIDs: []string{cam.ID},
	}, models.RoleSupervisor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ Zone models.GeofenceZone }
	decode(t, w, &created)

	w = env.do(t, http.MethodPost, "/api/v1/cctv/geofence/zones", models.ZoneInput{Name: "Line", Coordinates: []models.LatLng{{Lat: 1, Lng: 1}}}, models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/cameras/"+cam.ID, nil, models.RoleGuard)
	var got struct{ Camera models.Camera }
	decode(t, w, &got)
	assert.Equal(t, []string{created.Zone.ID}, got.Camera.ZoneIDs)

	w = env.do(t, http.MethodPost, "/api/v1/cctv/geofence/check", services.PositionReport{
		Latitude: -6.2088, Longitude: 106.8456, SubjectID: "guard-1",
	}, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.CheckResult
	decode(t, w, &result)
	require.Len(t, result.Events, 1)
	assert.Equal(t, models.SeverityCritical, result.Events[0].Severity)
	assert.Equal(t, cam.ID, result.Events[0].CameraID)

	w = env.do(t, http.MethodDelete, "/api/v1/cctv/geofence/zones/"+created.Zone.ID, nil, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/cctv/geofence/zones", nil, models.RoleGuard)
	var zones struct{ Zones []models.GeofenceZone }
	decode(t, w, &zones)
	assert.Empty(t, zones.Zones)
}

type staleRegistry struct {
	*repository.MemoryRegistry
}

func (r staleRegistry) ListCameras(ctx context.Context) ([]models.Camera, error) {
	cams, _ := r.MemoryRegistry.ListCameras(ctx)
	return cams, &repository.StaleError{Op: "list cameras", Err: errors.New("connection refused")}
}

func TestStaleReadCarriesWarning(t *testing.T) {
	env := newTestEnv(t, staleRegistry{repository.NewMemoryRegistry(nil)})

	w := env.do(t, http.MethodGet, "/api/v1/cctv/cameras", nil, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Cameras []models.Camera
		Warning string
	}
	decode(t, w, &resp)
	assert.NotNil(t, resp.Cameras)
	assert.Contains(t, resp.Warning, "connection refused")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(&repository.RemoteError{Op: "x", StatusCode: 500}))
	assert.Equal(t, http.StatusBadGateway, statusFor(services.ErrMediaServer))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestSystemHealthAndLiveness(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createCamera(t, models.CameraInput{Name: "Gate", Status: models.CameraOnline})

	w := env.do(t, http.MethodGet, "/api/v1/cctv/system/health", nil, models.RoleGuard)
	require.Equal(t, http.StatusOK, w.Code)
	var health models.SystemHealth
	decode(t, w, &health)
	assert.Equal(t, 1, health.TotalCameras)
	assert.Equal(t, 1, health.OnlineCameras)

	w = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = env.do(t, http.MethodGet, "/api/v1/cctv/system/streams", nil, models.RoleGuard)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventStream_Websocket(t *testing.T) {
	env := newTestEnv(t, nil)
	cam := env.createCamera(t, models.CameraInput{Name: "Gate"})

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/cctv/events/stream?token=" + env.token(t, models.RoleGuard)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return env.dispatcher.SubscriberCount() == 1 && env.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	w := env.do(t, http.MethodPost, "/api/v1/cctv/events", ReportEventRequest{
		CameraID: cam.ID, EventType: models.EventAlertTriggered, Severity: models.SeverityCritical,
	}, models.RoleCCTVOperator)
	require.Equal(t, http.StatusCreated, w.Code)

	var kinds []string
	for i := 0; i < 2; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg services.StreamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, cam.ID, msg.Event.CameraID)
		kinds = append(kinds, msg.Type)
	}
	assert.Equal(t, []string{services.MessageEvent, services.MessageAlert}, kinds)

	conn.Close()
	require.Eventually(t, func() bool { return env.dispatcher.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
