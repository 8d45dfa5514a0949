package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"guardforce-cctv/be/models"
)

const defaultStreamMaxLen = 10000

// StreamSink appends every dispatched event to a Redis stream so other
// services can consume them with XREAD or consumer groups.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(client *redis.Client, stream string) *StreamSink {
	return &StreamSink{client: client, stream: stream, maxLen: defaultStreamMaxLen}
}

func (s *StreamSink) Consume(ctx context.Context, event models.CCTVEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.EventType),
			"severity":   string(event.Severity),
			"camera_id":  event.CameraID,
			"timestamp":  event.Timestamp.Unix(),
			"data":       string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
