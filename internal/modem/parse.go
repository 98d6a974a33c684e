package modem

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"gsmtrack/internal/model"
)

// parseBody decodes an SMS body of the form "HH:MM:SS;lat,lon;lat,lon;...".
// Segments that fail to parse are skipped, and a (0,0) pair is treated as an
// invalid fix and dropped; neither aborts the rest of the body. The ok result
// is false only when the leading time segment is unusable.
func parseBody(body string, logger *zap.Logger) (model.TimeOfDay, []model.Point, bool) {
	parts := strings.Split(strings.TrimSpace(body), ";")
	start, err := model.ParseTimeOfDay(strings.TrimSpace(parts[0]))
	if err != nil {
		logger.Debug("message body has no usable time", zap.String("body", body))
		return model.TimeOfDay{}, nil, false
	}

	var points []model.Point
	for _, seg := range parts[1:] {
		seg = strings.TrimSpace(seg)
		lat, lon, ok := parsePair(seg)
		if !ok {
			logger.Debug("skipping invalid coordinate", zap.String("segment", seg))
			continue
		}
		if lat == 0 && lon == 0 {
			// No-fix sentinel from the tracker firmware.
			continue
		}
		points = append(points, model.Point{Latitude: lat, Longitude: lon})
	}
	return start, points, true
}

func parsePair(seg string) (lat, lon float64, ok bool) {
	fields := strings.Split(seg, ",")
	if len(fields) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// SyntheticTimes assigns each of n coordinates a provisional time of day:
// the first keeps the nominal start time, each later one is a minute after
// the previous.
func SyntheticTimes(start model.TimeOfDay, n int) []model.TimeOfDay {
	times := make([]model.TimeOfDay, n)
	for i := range times {
		times[i] = start.AddMinutes(i)
	}
	return times
}
