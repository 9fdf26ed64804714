package transit

import "sort"

// Deduplicate keeps one position per vehicle key, the one with the lowest
// ETA. The output is ordered by line and key.
func Deduplicate(positions []VehiclePosition) []VehiclePosition {
	best := make(map[string]int, len(positions))
	for i := range positions {
		j, seen := best[positions[i].VehicleKey]
		if !seen || positions[i].ETAMinutes < positions[j].ETAMinutes {
			best[positions[i].VehicleKey] = i
		}
	}

	out := make([]VehiclePosition, 0, len(best))
	for _, i := range best {
		out = append(out, positions[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LineID != out[j].LineID {
			return out[i].LineID < out[j].LineID
		}
		return out[i].VehicleKey < out[j].VehicleKey
	})
	return out
}
