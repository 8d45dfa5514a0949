package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.once.Do(func() { close(f.stopped) }) }

// tick blocks until the subscription loop takes the tick.
func (f *fakeTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case f.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription loop did not take the tick")
	}
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

type recordingAlerter struct {
	mu     sync.Mutex
	events []models.CCTVEvent
}

func (a *recordingAlerter) Alert(_ context.Context, e models.CCTVEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

type catalog struct {
	registry *repository.MemoryRegistry
	gate     models.Camera
	lobby    models.Camera
	zone     models.GeofenceZone
}

// newCatalog builds a PTZ gate camera and a dome lobby camera ~60m apart,
// sharing a restricted zone around the gate.
func newCatalog(t *testing.T) catalog {
	t.Helper()
	ctx := context.Background()
	reg := repository.NewMemoryRegistry(nil)

	gate, err := reg.CreateCamera(ctx, models.CameraInput{
		Name: "Main Gate", Latitude: -6.2088, Longitude: 106.8456,
		Status: models.CameraOnline, Type: models.CameraPTZ,
		RTSPUrl: "rtsp://10.0.0.11/stream1", StreamURL: "http://cdn.local/gate.m3u8",
	})
	require.NoError(t, err)
	lobby, err := reg.CreateCamera(ctx, models.CameraInput{
		Name: "Lobby", Latitude: -6.2093, Longitude: 106.8458,
		Status: models.CameraOnline, Type: models.CameraDome,
	})
	require.NoError(t, err)

	radius := 40.0
	zone, err := reg.CreateZone(ctx, models.ZoneInput{
		Name:      "Gate Perimeter",
		Type:      models.ZoneRestricted,
		Priority:  models.PriorityMedium,
		Center:    &models.LatLng{Lat: -6.2088, Lng: 106.8456},
		Radius:    &radius,
		CameraIDs: []string{gate.ID, lobby.ID},
	})
	require.NoError(t, err)

	gate, _ = reg.GetCamera(ctx, gate.ID)
	lobby, _ = reg.GetCamera(ctx, lobby.ID)
	return catalog{registry: reg, gate: gate, lobby: lobby, zone: zone}
}

func receive(t *testing.T, ch <-chan models.CCTVEvent) models.CCTVEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return models.CCTVEvent{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan models.CCTVEvent) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.ID)
	case <-time.After(50 * time.Millisecond):
	}
}
