package handlers

import (
	"context"
	"io"

	"gsmtrack/internal/cache"
	"gsmtrack/internal/model"
)

// CoordinateStore is the read side of the persistence layer the API serves.
type CoordinateStore interface {
	Origins(ctx context.Context) ([]model.Origin, error)
	Dates(ctx context.Context, originID int64) ([]string, error)
	Readings(ctx context.Context, originID int64, date string) ([]model.Point, error)
	PhoneNumber(ctx context.Context, originID int64) (string, error)
	Latest(ctx context.Context, originID int64) (model.Reading, error)
	Export(ctx context.Context, w io.Writer) error
}

// PositionCache answers latest-position lookups without a table scan.
type PositionCache interface {
	Get(ctx context.Context, originID int64) (*cache.LatestPosition, error)
}
