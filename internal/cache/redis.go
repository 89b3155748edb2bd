package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"pc-rca/internal/models"
)

const (
	EventsChannel = "pcrca:events"
	RecentKey     = "pcrca:events:recent"

	maxRecent = 1000
	eventTTL  = 24 * time.Hour
)

// RedisFeed mirrors anomaly events into Redis: a bounded list of recent
// events plus a pub/sub channel for live viewers.
type RedisFeed struct {
	client redis.UniversalClient
}

func NewRedisFeed(ctx context.Context, addr string) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return NewRedisFeedWithClient(client), nil
}

func NewRedisFeedWithClient(client redis.UniversalClient) *RedisFeed {
	return &RedisFeed{client: client}
}

func eventKey(ev models.AnomalyEvent) string {
	return fmt.Sprintf("pcrca:event:%d", ev.Timestamp.UnixNano())
}

func (r *RedisFeed) PublishEvent(ctx context.Context, ev models.AnomalyEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := eventKey(ev)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, eventTTL)
		pipe.LPush(ctx, RecentKey, key)
		pipe.LTrim(ctx, RecentKey, 0, maxRecent-1)
		pipe.Publish(ctx, EventsChannel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to Redis: %w", err)
	}
	return nil
}

// RecentEvents returns up to count events, newest first. Keys that expired
// or hold invalid data are skipped.
func (r *RedisFeed) RecentEvents(ctx context.Context, count int64) ([]models.AnomalyEvent, error) {
	keys, err := r.client.LRange(ctx, RecentKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent event keys: %w", err)
	}

	events := make([]models.AnomalyEvent, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var ev models.AnomalyEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func (r *RedisFeed) Close() error {
	return r.client.Close()
}
