package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linewatch/linewatch/internal/api/models"
	"github.com/linewatch/linewatch/internal/api/response"
	"github.com/linewatch/linewatch/internal/topology"
	"github.com/linewatch/linewatch/pkg/polyline"
)

// LinesHandler serves the static network. The topology never changes while
// the process runs, so responses are built once.
type LinesHandler struct {
	list models.LinesResponse
	byID map[string]models.Line
}

// NewLinesHandler builds the line responses from the topology.
func NewLinesHandler(topo *topology.Repository) *LinesHandler {
	h := &LinesHandler{
		list: models.LinesResponse{Lines: make([]models.Line, 0, topo.LineCount())},
		byID: make(map[string]models.Line, topo.LineCount()),
	}
	for _, l := range topo.AllLines() {
		line := toLine(l)
		h.list.Lines = append(h.list.Lines, line)
		h.byID[line.ID] = line
	}
	h.list.Count = len(h.list.Lines)
	return h
}

// List handles GET /v1/lines.
func (h *LinesHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.list)
}

// Get handles GET /v1/lines/{lineId}.
func (h *LinesHandler) Get(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineId")
	line, ok := h.byID[lineID]
	if !ok {
		response.NotFound(w, r, "no line with id "+lineID)
		return
	}
	response.JSON(w, r, http.StatusOK, line)
}

func toLine(l *topology.Line) models.Line {
	coords := l.Coordinates()
	stations := make([]models.Station, 0, len(l.Stations))
	for _, s := range l.Stations {
		stations = append(stations, models.Station{
			Code: s.Code,
			Name: s.Name,
			Lat:  s.Coordinate.Lat,
			Lon:  s.Coordinate.Lon,
		})
	}
	return models.Line{
		ID:           l.ID,
		Name:         l.Name,
		Color:        l.Color,
		Stations:     stations,
		Polyline:     polyline.Encode(coords),
		LengthMeters: polyline.Length(coords),
		StationCount: len(stations),
	}
}
