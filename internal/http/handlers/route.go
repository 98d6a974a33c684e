package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gsmtrack/internal/model"
	"gsmtrack/internal/store"
)

type routePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

// NewRouteHandler returns GET /route?origin_id=&date=: the ordered,
// timestamp-unique readings for one origin and day.
func NewRouteHandler(st CoordinateStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originID, ok := originIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "origin_id query parameter required")
			return
		}
		date := r.URL.Query().Get("date")
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}

		points, err := st.Readings(r.Context(), originID, date)
		if err != nil {
			logger.Error("failed to query route",
				zap.Int64("origin_id", originID),
				zap.String("date", date),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to query route")
			return
		}

		out := make([]routePoint, 0, len(points))
		for _, p := range points {
			out = append(out, routePoint{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Timestamp: p.RecordedAt.String(),
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"origin_id": originID,
			"date":      date,
			"points":    out,
		})
	}
}

// NewLatestHandler returns GET /latest?origin_id=: the most recent position.
// The redis cache answers when it can; otherwise the store is asked and the
// phone number resolved separately.
func NewLatestHandler(st CoordinateStore, positions PositionCache, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originID, ok := originIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "origin_id query parameter required")
			return
		}

		if positions != nil {
			pos, err := positions.Get(r.Context(), originID)
			if err != nil {
				logger.Warn("latest position cache lookup failed", zap.Error(err))
			} else if pos != nil {
				writeJSON(w, http.StatusOK, pos)
				return
			}
		}

		phone, err := st.PhoneNumber(r.Context(), originID)
		if errors.Is(err, store.ErrOriginNotFound) {
			writeError(w, http.StatusNotFound, "unknown origin")
			return
		}
		if err != nil {
			logger.Error("failed to resolve origin", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to resolve origin")
			return
		}

		reading, err := st.Latest(r.Context(), originID)
		if errors.Is(err, store.ErrNoReadings) {
			writeError(w, http.StatusNotFound, "origin has no readings")
			return
		}
		if err != nil {
			logger.Error("failed to query latest reading", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to query latest reading")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"origin_id":    originID,
			"phone_number": phone,
			"latitude":     reading.Latitude,
			"longitude":    reading.Longitude,
			"timestamp":    reading.RecordedAt.String(),
			"date":         reading.RecordedOn,
		})
	}
}
