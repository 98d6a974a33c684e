package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"gsmtrack/internal/model"
)

// ErrOriginNotFound is returned when an origin id resolves to nothing.
var ErrOriginNotFound = errors.New("store: origin not found")

// ErrNoReadings is returned by Latest when an origin has no rows yet.
var ErrNoReadings = errors.New("store: no readings")

// Store persists phone-number-scoped coordinate sequences. Timestamps are
// synthesized on write so that no two readings of one (origin, date)
// partition share a time of day.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time

	// insertMu serializes the read-latest-then-write sequence inside Insert.
	// Without it, two concurrent inserts for one origin can both read the
	// same latest timestamp and store duplicates.
	insertMu sync.Mutex
}

// New wraps a database pool.
func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger, now: time.Now}
}

// EnsureSchema creates the origin and reading tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const origins = `
		CREATE TABLE IF NOT EXISTS origins (
			id BIGSERIAL PRIMARY KEY,
			phone_number TEXT UNIQUE NOT NULL
		)
	`
	const readings = `
		CREATE TABLE IF NOT EXISTS readings (
			origin_id BIGINT NOT NULL REFERENCES origins(id),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			recorded_at TEXT NOT NULL,
			recorded_on TEXT NOT NULL
		)
	`
	const index = `
		CREATE INDEX IF NOT EXISTS readings_partition_idx
		ON readings (origin_id, recorded_on, recorded_at)
	`
	for _, stmt := range []string{origins, readings, index} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

// Insert stores one reading for the given phone number and returns the id of
// its origin, creating the origin on first sight. The proposed time is used
// verbatim only for the first reading of (origin, today); every later reading
// gets the stored maximum plus one minute, regardless of what was proposed.
func (s *Store) Insert(ctx context.Context, phone string, proposed model.TimeOfDay, lat, lon float64) (int64, error) {
	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	date := s.now().Format(model.DateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin insert: %w", err)
	}
	defer tx.Rollback()

	originID, err := resolveOrigin(ctx, tx, phone)
	if err != nil {
		return 0, err
	}

	last, err := latestTimestamp(ctx, tx, originID, date)
	if err != nil {
		return 0, err
	}
	stamp := nextTimestamp(last, proposed)

	const insert = `
		INSERT INTO readings (origin_id, latitude, longitude, recorded_at, recorded_on)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, insert, originID, lat, lon, stamp.String(), date); err != nil {
		return 0, fmt.Errorf("store: insert reading: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit insert: %w", err)
	}
	return originID, nil
}

func resolveOrigin(ctx context.Context, tx *sql.Tx, phone string) (int64, error) {
	const upsert = `
		INSERT INTO origins (phone_number) VALUES ($1)
		ON CONFLICT (phone_number) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, upsert, phone); err != nil {
		return 0, fmt.Errorf("store: upsert origin: %w", err)
	}

	var id int64
	const query = `SELECT id FROM origins WHERE phone_number = $1`
	if err := tx.QueryRowContext(ctx, query, phone).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: resolve origin: %w", err)
	}
	return id, nil
}

func latestTimestamp(ctx context.Context, tx *sql.Tx, originID int64, date string) (*model.TimeOfDay, error) {
	const query = `
		SELECT recorded_at FROM readings
		WHERE origin_id = $1 AND recorded_on = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	var raw string
	err := tx.QueryRowContext(ctx, query, originID, date).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read latest timestamp: %w", err)
	}
	last, err := model.ParseTimeOfDay(raw)
	if err != nil {
		return nil, fmt.Errorf("store: stored timestamp %q: %w", raw, err)
	}
	return &last, nil
}

// Readings returns the route for one origin and date, ordered by time of day
// ascending. Duplicate stored timestamps are shifted forward on the way out
// so the result never contains two identical times.
func (s *Store) Readings(ctx context.Context, originID int64, date string) ([]model.Point, error) {
	const query = `
		SELECT latitude, longitude, recorded_at FROM readings
		WHERE origin_id = $1 AND recorded_on = $2
		ORDER BY recorded_at
	`
	rows, err := s.db.QueryContext(ctx, query, originID, date)
	if err != nil {
		return nil, fmt.Errorf("store: query readings: %w", err)
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var (
			p   model.Point
			raw string
		)
		if err := rows.Scan(&p.Latitude, &p.Longitude, &raw); err != nil {
			return nil, fmt.Errorf("store: scan reading: %w", err)
		}
		p.RecordedAt, err = model.ParseTimeOfDay(raw)
		if err != nil {
			return nil, fmt.Errorf("store: stored timestamp %q: %w", raw, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate readings: %w", err)
	}
	return dedupeTimestamps(points), nil
}

// Origins lists every known origin in insertion order.
func (s *Store) Origins(ctx context.Context) ([]model.Origin, error) {
	const query = `SELECT id, phone_number FROM origins ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: query origins: %w", err)
	}
	defer rows.Close()

	var origins []model.Origin
	for rows.Next() {
		var o model.Origin
		if err := rows.Scan(&o.ID, &o.PhoneNumber); err != nil {
			return nil, fmt.Errorf("store: scan origin: %w", err)
		}
		origins = append(origins, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate origins: %w", err)
	}
	return origins, nil
}

// Dates lists the distinct dates an origin has readings for.
func (s *Store) Dates(ctx context.Context, originID int64) ([]string, error) {
	const query = `
		SELECT DISTINCT recorded_on FROM readings
		WHERE origin_id = $1
		ORDER BY recorded_on
	`
	rows, err := s.db.QueryContext(ctx, query, originID)
	if err != nil {
		return nil, fmt.Errorf("store: query dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("store: scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dates: %w", err)
	}
	return dates, nil
}

// PhoneNumber resolves an origin id back to its number.
func (s *Store) PhoneNumber(ctx context.Context, originID int64) (string, error) {
	const query = `SELECT phone_number FROM origins WHERE id = $1`
	var phone string
	err := s.db.QueryRowContext(ctx, query, originID).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOriginNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: resolve phone number: %w", err)
	}
	return phone, nil
}

// Latest returns the most recently stored reading for an origin.
func (s *Store) Latest(ctx context.Context, originID int64) (model.Reading, error) {
	const query = `
		SELECT latitude, longitude, recorded_at, recorded_on FROM readings
		WHERE origin_id = $1
		ORDER BY recorded_on DESC, recorded_at DESC
		LIMIT 1
	`
	var (
		r   model.Reading
		raw string
	)
	err := s.db.QueryRowContext(ctx, query, originID).Scan(&r.Latitude, &r.Longitude, &raw, &r.RecordedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reading{}, ErrNoReadings
	}
	if err != nil {
		return model.Reading{}, fmt.Errorf("store: query latest reading: %w", err)
	}
	r.OriginID = originID
	r.RecordedAt, err = model.ParseTimeOfDay(raw)
	if err != nil {
		return model.Reading{}, fmt.Errorf("store: stored timestamp %q: %w", raw, err)
	}
	return r, nil
}

// Export streams every reading as flat CSV: phone number, latitude,
// longitude, timestamp, date.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	const query = `
		SELECT o.phone_number, r.latitude, r.longitude, r.recorded_at, r.recorded_on
		FROM readings r
		JOIN origins o ON o.id = r.origin_id
		ORDER BY o.id, r.recorded_on, r.recorded_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("store: query export: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Phone Number", "Latitude", "Longitude", "Timestamp", "Date"}); err != nil {
		return fmt.Errorf("store: write export header: %w", err)
	}
	for rows.Next() {
		var (
			phone, stamp, date string
			lat, lon           float64
		)
		if err := rows.Scan(&phone, &lat, &lon, &stamp, &date); err != nil {
			return fmt.Errorf("store: scan export row: %w", err)
		}
		record := []string{
			phone,
			strconv.FormatFloat(lat, 'f', -1, 64),
			strconv.FormatFloat(lon, 'f', -1, 64),
			stamp,
			date,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("store: write export row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: iterate export: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
