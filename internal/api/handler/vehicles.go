package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/api/models"
	"github.com/linewatch/linewatch/internal/api/response"
	"github.com/linewatch/linewatch/internal/topology"
	"github.com/linewatch/linewatch/internal/transit"
)

// SnapshotSource returns the current vehicle snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*transit.Result, error)
}

// VehiclesHandler serves estimated vehicle positions.
type VehiclesHandler struct {
	snapshots SnapshotSource
	topology  *topology.Repository
	logger    zerolog.Logger
}

// NewVehiclesHandler creates a VehiclesHandler.
func NewVehiclesHandler(snapshots SnapshotSource, topo *topology.Repository, logger zerolog.Logger) *VehiclesHandler {
	return &VehiclesHandler{snapshots: snapshots, topology: topo, logger: logger}
}

// List handles GET /v1/vehicles with an optional ?line= filter.
func (h *VehiclesHandler) List(w http.ResponseWriter, r *http.Request) {
	lineID := r.URL.Query().Get("line")
	if lineID != "" {
		if _, ok := h.topology.GetLine(lineID); !ok {
			response.BadRequest(w, r, "unknown line", []models.FieldError{
				{Field: "line", Message: "no line with id " + lineID, Code: "UNKNOWN_LINE"},
			})
			return
		}
	}

	result, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			response.ServiceUnavailable(w, r, "snapshot computation did not finish")
			return
		}
		h.logger.Error().Err(err).Msg("computing snapshot")
		response.InternalError(w, r, "could not compute vehicle positions")
		return
	}

	positions := result.Snapshot.Filter(lineID)
	vehicles := make([]models.Vehicle, 0, len(positions))
	for i := range positions {
		vehicles = append(vehicles, toVehicle(&positions[i]))
	}

	response.JSON(w, r, http.StatusOK, models.VehiclesResponse{
		Vehicles:  vehicles,
		Count:     len(vehicles),
		Timestamp: models.Timestamp(result.Snapshot.ComputedAt),
		Cached:    result.Cached,
	})
}

func toVehicle(p *transit.VehiclePosition) models.Vehicle {
	v := models.Vehicle{
		LineID:              p.LineID,
		VehicleKey:          p.VehicleKey,
		Destination:         p.Destination,
		PreviousStationCode: p.PreviousStationCode,
		NextStationCode:     p.NextStationCode,
		ETAMinutes:          p.ETAMinutes,
		Progress:            p.Progress,
		Lat:                 p.Coordinate.Lat,
		Lon:                 p.Coordinate.Lon,
		Bearing:             p.Bearing,
		Wagons:              p.Wagons,
	}
	if p.Platform != "" {
		platform := p.Platform
		v.Platform = &platform
	}
	return v
}
