package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"gsmtrack/internal/cache"
	"gsmtrack/internal/model"
	"gsmtrack/internal/store"
)

type fakeStore struct {
	origins  []model.Origin
	dates    map[int64][]string
	readings map[string][]model.Point
	latest   map[int64]model.Reading
	err      error
}

func (f *fakeStore) Origins(context.Context) ([]model.Origin, error) {
	return f.origins, f.err
}

func (f *fakeStore) Dates(_ context.Context, originID int64) ([]string, error) {
	return f.dates[originID], f.err
}

func (f *fakeStore) Readings(_ context.Context, originID int64, date string) ([]model.Point, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.readings[date], nil
}

func (f *fakeStore) PhoneNumber(_ context.Context, originID int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, o := range f.origins {
		if o.ID == originID {
			return o.PhoneNumber, nil
		}
	}
	return "", store.ErrOriginNotFound
}

func (f *fakeStore) Latest(_ context.Context, originID int64) (model.Reading, error) {
	r, ok := f.latest[originID]
	if !ok {
		return model.Reading{}, store.ErrNoReadings
	}
	return r, nil
}

func (f *fakeStore) Export(_ context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Phone Number", "Latitude", "Longitude", "Timestamp", "Date"})
	_ = cw.Write([]string{"+1", "17.1", "83.2", "10:00:00", "2026-08-31"})
	cw.Flush()
	return cw.Error()
}

type fakePositions struct {
	pos *cache.LatestPosition
	err error
}

func (f *fakePositions) Get(context.Context, int64) (*cache.LatestPosition, error) {
	return f.pos, f.err
}

func mustTime(t *testing.T, s string) model.TimeOfDay {
	t.Helper()
	ts, err := model.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestOriginsHandler(t *testing.T) {
	st := &fakeStore{origins: []model.Origin{{ID: 1, PhoneNumber: "+1"}, {ID: 2, PhoneNumber: "+2"}}}
	handler := NewOriginsHandler(st, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/origins", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Origins []model.Origin `json:"origins"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Origins) != 2 || body.Origins[0].PhoneNumber != "+1" {
		t.Fatalf("unexpected origins: %+v", body.Origins)
	}
}

func TestOriginsHandlerStorageFailure(t *testing.T) {
	st := &fakeStore{err: errors.New("db down")}
	handler := NewOriginsHandler(st, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/origins", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestDatesHandler(t *testing.T) {
	st := &fakeStore{
		origins: []model.Origin{{ID: 7, PhoneNumber: "+7"}},
		dates:   map[int64][]string{7: {"2026-08-30", "2026-08-31"}},
	}
	handler := NewDatesHandler(st, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/dates?origin_id=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Dates []string `json:"dates"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Dates) != 2 {
		t.Fatalf("dates = %v", body.Dates)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/dates?origin_id=99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown origin status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/dates", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing origin_id status = %d, want 400", rec.Code)
	}
}

func TestRouteHandler(t *testing.T) {
	st := &fakeStore{
		readings: map[string][]model.Point{
			"2026-08-31": {
				{Latitude: 17.1, Longitude: 83.2, RecordedAt: mustTime(t, "10:00:00")},
				{Latitude: 17.3, Longitude: 83.4, RecordedAt: mustTime(t, "10:01:00")},
			},
		},
	}
	handler := NewRouteHandler(st, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/route?origin_id=1&date=2026-08-31", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Points []routePoint `json:"points"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Points) != 2 {
		t.Fatalf("points = %+v", body.Points)
	}
	if body.Points[0].Timestamp != "10:00:00" || body.Points[1].Timestamp != "10:01:00" {
		t.Errorf("timestamps = %s, %s", body.Points[0].Timestamp, body.Points[1].Timestamp)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/route?origin_id=1&date=31-08-2026", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
}

func TestLatestHandlerPrefersCache(t *testing.T) {
	st := &fakeStore{}
	positions := &fakePositions{pos: &cache.LatestPosition{
		OriginID: 3, PhoneNumber: "+3", Latitude: 1.5, Longitude: 2.5,
		Timestamp: "12:00:00", Date: "2026-08-31",
	}}
	handler := NewLatestHandler(st, positions, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/latest?origin_id=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var pos cache.LatestPosition
	if err := json.NewDecoder(rec.Body).Decode(&pos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pos.PhoneNumber != "+3" || pos.Timestamp != "12:00:00" {
		t.Fatalf("cached position not served: %+v", pos)
	}
}

func TestLatestHandlerFallsBackToStore(t *testing.T) {
	st := &fakeStore{
		origins: []model.Origin{{ID: 4, PhoneNumber: "+4"}},
		latest: map[int64]model.Reading{
			4: {OriginID: 4, Latitude: 9.5, Longitude: 8.5, RecordedAt: mustTime(t, "13:00:00"), RecordedOn: "2026-08-31"},
		},
	}
	handler := NewLatestHandler(st, &fakePositions{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/latest?origin_id=4", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["phone_number"] != "+4" || body["timestamp"] != "13:00:00" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLatestHandlerUnknownOrigin(t *testing.T) {
	handler := NewLatestHandler(&fakeStore{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/latest?origin_id=42", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestExportHandler(t *testing.T) {
	handler := NewExportHandler(&fakeStore{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/export.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d records", len(records))
	}
	wantHeader := []string{"Phone Number", "Latitude", "Longitude", "Timestamp", "Date"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header = %v", records[0])
		}
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
