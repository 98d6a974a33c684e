package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// NewExportHandler returns GET /export.csv: the whole readings table as flat
// CSV, one row per reading.
func NewExportHandler(st CoordinateStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="gps_coordinates.csv"`)
		if err := st.Export(r.Context(), w); err != nil {
			// Headers are gone already; all that is left is logging.
			logger.Error("csv export failed", zap.Error(err))
		}
	}
}

// NewHealthHandler returns GET /health.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
