package store

import "gsmtrack/internal/model"

// nextTimestamp picks the stamp a new reading is stored under. The first
// reading of a partition keeps the caller's proposed time; after that the
// proposal is ignored and the stored maximum advances by one minute, which
// keeps a partition's timestamps monotonic and collision free by
// construction.
func nextTimestamp(last *model.TimeOfDay, proposed model.TimeOfDay) model.TimeOfDay {
	if last == nil {
		return proposed
	}
	return last.AddMinutes(1)
}

// dedupeTimestamps forward-shifts any timestamp that collides with one
// already emitted in this pass, a minute at a time, until it is unique.
// Write-time synthesis already prevents duplicates, so this only matters for
// rows inserted by external tools.
func dedupeTimestamps(points []model.Point) []model.Point {
	seen := make(map[model.TimeOfDay]struct{}, len(points))
	out := make([]model.Point, 0, len(points))
	for _, p := range points {
		ts := p.RecordedAt
		for {
			if _, dup := seen[ts]; !dup {
				break
			}
			ts = ts.AddMinutes(1)
		}
		seen[ts] = struct{}{}
		p.RecordedAt = ts
		out = append(out, p)
	}
	return out
}
