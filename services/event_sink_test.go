package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
)

func TestStreamSink_Consume(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewStreamSink(client, "cctv:events")
	ctx := context.Background()
	event := models.CCTVEvent{
		ID:         "evt-1",
		CameraID:   "cam-1",
		CameraName: "Main Gate",
		EventType:  models.EventZoneBreach,
		Severity:   models.SeverityCritical,
		Timestamp:  time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Consume(ctx, event))

	entries, err := client.XRange(ctx, "cctv:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, "evt-1", values["event_id"])
	assert.Equal(t, "zone_breach", values["event_type"])
	assert.Equal(t, "critical", values["severity"])

	var decoded models.CCTVEvent
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, "Main Gate", decoded.CameraName)
}

func TestStreamSink_ThroughDispatcher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewDispatcher(time.Second, quietSource, nil, zap.NewNop(), WithSinks(NewStreamSink(client, "cctv:events")))
	defer d.Close()

	for i := 0; i < 3; i++ {
		_, err := d.Publish(context.Background(), models.CCTVEvent{
			CameraID: "cam-1", EventType: models.EventMotionDetected, Severity: models.SeverityInfo,
		})
		require.NoError(t, err)
	}
	n, err := client.XLen(context.Background(), "cctv:events").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
