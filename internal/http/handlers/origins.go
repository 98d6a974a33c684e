package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gsmtrack/internal/store"
)

// NewOriginsHandler returns GET /origins: every known reporting device.
func NewOriginsHandler(st CoordinateStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origins, err := st.Origins(r.Context())
		if err != nil {
			logger.Error("failed to list origins", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list origins")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"origins": origins,
		})
	}
}

// NewDatesHandler returns GET /dates?origin_id=: the dates an origin has
// readings for.
func NewDatesHandler(st CoordinateStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originID, ok := originIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "origin_id query parameter required")
			return
		}

		if _, err := st.PhoneNumber(r.Context(), originID); err != nil {
			if errors.Is(err, store.ErrOriginNotFound) {
				writeError(w, http.StatusNotFound, "unknown origin")
				return
			}
			logger.Error("failed to resolve origin", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to resolve origin")
			return
		}

		dates, err := st.Dates(r.Context(), originID)
		if err != nil {
			logger.Error("failed to list dates", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list dates")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"origin_id": originID,
			"dates":     dates,
		})
	}
}
