package topology

import (
	"fmt"
	"strings"
)

// Exhaustive returns a reference to every station of every line.
func (r *Repository) Exhaustive() []StationRef {
	refs := make([]StationRef, 0, r.StationCount())
	for _, l := range r.AllLines() {
		for _, s := range l.Stations {
			refs = append(refs, StationRef{LineID: l.ID, StationCode: s.Code})
		}
	}
	return refs
}

// Strategic returns a reduced set of stations that still covers every line:
// both terminals plus every stride-th station in between. With the default
// three-minute segment assumption a stride of 3 leaves no gap longer than
// the ten-minute tracking horizon. A stride of 1 or less is exhaustive.
func (r *Repository) Strategic(stride int) []StationRef {
	if stride <= 1 {
		return r.Exhaustive()
	}

	var refs []StationRef
	for _, l := range r.AllLines() {
		last := l.LastIndex()
		for i, s := range l.Stations {
			if i == 0 || i == last || i%stride == 0 {
				refs = append(refs, StationRef{LineID: l.ID, StationCode: s.Code})
			}
		}
	}
	return refs
}

// ParseStationRefs parses a comma separated "LINE:CODE" list.
func ParseStationRefs(s string) ([]StationRef, error) {
	var refs []StationRef
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lineID, code, ok := strings.Cut(part, ":")
		if !ok || lineID == "" || code == "" {
			return nil, fmt.Errorf("invalid station reference %q: want LINE:CODE", part)
		}
		refs = append(refs, StationRef{LineID: lineID, StationCode: code})
	}
	return refs, nil
}
