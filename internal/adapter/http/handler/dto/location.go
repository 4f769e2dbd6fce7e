package dto

import (
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/uuid"
	"github.com/uit-go/ridehail/pkg/validator"
)

type LocationUpdateRequest struct {
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

func (r *LocationUpdateRequest) Validate(v *validator.Validator) {
	if r.Latitude != nil && r.Longitude != nil {
		v.Check(*r.Latitude >= -90 && *r.Latitude <= 90, "latitude", "must be between -90 and 90")
		v.Check(*r.Longitude >= -180 && *r.Longitude <= 180, "longitude", "must be between -180 and 180")
	} else {
		v.Check(r.Latitude != nil, "latitude", "must be provided")
		v.Check(r.Longitude != nil, "longitude", "must be provided")
	}
}

func (r *LocationUpdateRequest) ToModel(driverID uuid.UUID) models.DriverPosition {
	pos := models.DriverPosition{
		DriverID:  driverID,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
	}
	if r.RecordedAt != nil {
		pos.RecordedAt = *r.RecordedAt
	}
	return pos
}

type NearbyDriverResponse struct {
	DriverID   uuid.UUID `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DistanceKm float64   `json:"distance_km"`
}

func ToNearbyDriverResponses(drivers []models.NearbyDriver) []NearbyDriverResponse {
	out := make([]NearbyDriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, NearbyDriverResponse{
			DriverID:   d.DriverID,
			Latitude:   d.Latitude,
			Longitude:  d.Longitude,
			DistanceKm: d.DistanceKm,
		})
	}
	return out
}
