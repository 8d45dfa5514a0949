package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

func newTestMonitor(c catalog) (*GeofenceMonitor, *recordingAlerter) {
	alerts := &recordingAlerter{}
	d := NewDispatcher(0, quietSource, c.registry, zap.NewNop(), WithAlerters(alerts))
	return NewGeofenceMonitor(c.registry, d, c.registry, zap.NewNop()), alerts
}

func TestGeofenceMonitor_BreachAttributedToNearestCamera(t *testing.T) {
	c := newCatalog(t)
	m, alerts := newTestMonitor(c)
	ctx := context.Background()

	res, err := m.Check(ctx, PositionReport{Latitude: -6.2089, Longitude: 106.8456, SubjectID: "guard-7", SubjectName: "Budi"})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.True(t, res.Matches[0].Breach)
	assert.Equal(t, c.zone.ID, res.Matches[0].ZoneID)

	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, models.EventZoneBreach, e.EventType)
	assert.Equal(t, models.SeverityWarning, e.Severity)
	assert.Equal(t, c.gate.ID, e.CameraID)
	assert.Equal(t, c.zone.Name, *e.ZoneName)
	assert.Equal(t, "guard-7", e.Metadata.SubjectID)
	assert.Equal(t, 0, alerts.count())

	stored, err := c.registry.ListEvents(ctx, repository.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestGeofenceMonitor_Outside(t *testing.T) {
	c := newCatalog(t)
	m, _ := newTestMonitor(c)

	res, err := m.Check(context.Background(), PositionReport{Latitude: -6.2200, Longitude: 106.8600})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Events)
}

func TestGeofenceMonitor_SeverityByZone(t *testing.T) {
	tests := []struct {
		name     string
		zoneType models.ZoneType
		priority models.ZonePriority
		want     models.Severity
		breach   bool
	}{
		{"restricted high", models.ZoneRestricted, models.PriorityHigh, models.SeverityCritical, true},
		{"alert critical", models.ZoneAlert, models.PriorityCritical, models.SeverityCritical, true},
		{"alert low", models.ZoneAlert, models.PriorityLow, models.SeverityInfo, true},
		{"emergency low", models.ZoneEmergency, models.PriorityLow, models.SeverityCritical, true},
		{"monitoring", models.ZoneMonitoring, models.PriorityCritical, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCatalog(t)
			_, err := c.registry.UpdateZone(context.Background(), c.zone.ID, models.ZonePatch{
				Type: &tt.zoneType, Priority: &tt.priority,
			})
			require.NoError(t, err)
			m, alerts := newTestMonitor(c)

			res, err := m.Check(context.Background(), PositionReport{Latitude: -6.2088, Longitude: 106.8456})
			require.NoError(t, err)
			require.Len(t, res.Matches, 1)
			assert.Equal(t, tt.breach, res.Matches[0].Breach)
			if !tt.breach {
				assert.Empty(t, res.Events)
				return
			}
			require.Len(t, res.Events, 1)
			assert.Equal(t, tt.want, res.Events[0].Severity)
			if tt.want == models.SeverityCritical {
				assert.Equal(t, 1, alerts.count())
			}
		})
	}
}

func TestGeofenceMonitor_AutoRecording(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	on := true
	_, err := c.registry.UpdateZone(ctx, c.zone.ID, models.ZonePatch{AutoRecording: &on})
	require.NoError(t, err)
	m, _ := newTestMonitor(c)

	report := PositionReport{Latitude: -6.2088, Longitude: 106.8456}
	_, err = m.Check(ctx, report)
	require.NoError(t, err)

	recs, err := c.registry.ListRecordings(ctx, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, models.TriggerZoneBreach, r.TriggerType)
		assert.Equal(t, models.RecordingActive, r.Status)
	}

	// Cameras already recording are left alone; the breach is still reported.
	res, err := m.Check(ctx, report)
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	recs, _ = c.registry.ListRecordings(ctx, "")
	assert.Len(t, recs, 2)
}

func TestGeofenceMonitor_InactiveZoneIgnored(t *testing.T) {
	c := newCatalog(t)
	off := false
	_, err := c.registry.UpdateZone(context.Background(), c.zone.ID, models.ZonePatch{IsActive: &off})
	require.NoError(t, err)
	m, _ := newTestMonitor(c)

	res, err := m.Check(context.Background(), PositionReport{Latitude: -6.2088, Longitude: 106.8456})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestGeofenceMonitor_InvalidPosition(t *testing.T) {
	c := newCatalog(t)
	m, _ := newTestMonitor(c)

	_, err := m.Check(context.Background(), PositionReport{Latitude: 91, Longitude: 0})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}
