package service

import (
	"context"

	"go.uber.org/zap"

	"gsmtrack/internal/cache"
	"gsmtrack/internal/model"
	"gsmtrack/internal/ws"
)

// ReadingStore is the slice of the coordinate store the ingest path needs.
type ReadingStore interface {
	Insert(ctx context.Context, phone string, proposed model.TimeOfDay, lat, lon float64) (int64, error)
	Latest(ctx context.Context, originID int64) (model.Reading, error)
}

// LatestCache mirrors the newest stored position for quick lookups.
type LatestCache interface {
	Save(ctx context.Context, pos cache.LatestPosition) error
}

// Broadcaster pushes stored readings to live subscribers.
type Broadcaster interface {
	Broadcast(ev ws.Event)
}

// Tracker consumes decoded SMS messages, persists every coordinate, and fans
// the stored result out to the cache and the live feed. One tracker instance
// is the single writer for modem-sourced readings.
type Tracker struct {
	store  ReadingStore
	cache  LatestCache
	feed   Broadcaster
	logger *zap.Logger
}

// NewTracker builds the ingest pipeline. The cache and feed may be nil when
// the deployment runs without redis or live subscribers.
func NewTracker(store ReadingStore, cache LatestCache, feed Broadcaster, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, cache: cache, feed: feed, logger: logger}
}

// Run drains the message stream until it closes or the context is cancelled.
// A failed insert skips that coordinate and keeps going: one bad reading
// must not stall the stream.
func (t *Tracker) Run(ctx context.Context, messages <-chan model.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			t.ingest(ctx, msg)
		}
	}
}

func (t *Tracker) ingest(ctx context.Context, msg model.Message) {
	for _, pt := range msg.Points {
		originID, err := t.store.Insert(ctx, msg.Phone, pt.RecordedAt, pt.Latitude, pt.Longitude)
		if err != nil {
			t.logger.Error("failed to store reading",
				zap.String("phone", msg.Phone),
				zap.Error(err),
			)
			continue
		}

		stored, err := t.store.Latest(ctx, originID)
		if err != nil {
			t.logger.Error("failed to read back stored reading",
				zap.Int64("origin_id", originID),
				zap.Error(err),
			)
			continue
		}

		if t.cache != nil {
			pos := cache.LatestPosition{
				OriginID:    originID,
				PhoneNumber: msg.Phone,
				Latitude:    stored.Latitude,
				Longitude:   stored.Longitude,
				Timestamp:   stored.RecordedAt.String(),
				Date:        stored.RecordedOn,
			}
			if err := t.cache.Save(ctx, pos); err != nil {
				t.logger.Warn("latest position cache update failed", zap.Error(err))
			}
		}

		if t.feed != nil {
			t.feed.Broadcast(ws.Event{
				OriginID:    originID,
				PhoneNumber: msg.Phone,
				Latitude:    stored.Latitude,
				Longitude:   stored.Longitude,
				Timestamp:   stored.RecordedAt.String(),
				Date:        stored.RecordedOn,
			})
		}

		t.logger.Info("reading stored",
			zap.Int64("origin_id", originID),
			zap.Float64("latitude", stored.Latitude),
			zap.Float64("longitude", stored.Longitude),
			zap.String("timestamp", stored.RecordedAt.String()),
		)
	}
}
