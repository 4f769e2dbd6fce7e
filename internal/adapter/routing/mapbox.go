package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/location"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
)

var domain = "https://api.mapbox.com"

// MapboxClient resolves driving routes through the Mapbox Directions API.
// When the API is unreachable it falls back to the straight-line distance
// and marks the result estimated.
type MapboxClient struct {
	token  string
	client *http.Client
	l      logger.Logger
}

func New(token string, timeout time.Duration, log logger.Logger) *MapboxClient {
	return &MapboxClient{
		token:  token,
		client: &http.Client{Timeout: timeout},
		l:      log,
	}
}

type directionsPayload struct {
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
	Code string `json:"code"`
}

func (c *MapboxClient) Route(ctx context.Context, from, to models.Location) (models.RouteInfo, error) {
	const op = "MapboxClient.Route"

	route, err := c.fetchRoute(ctx, from, to)
	if err == nil {
		return route, nil
	}

	ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
	c.l.Warn(ctx, "mapbox unavailable, using straight-line estimate", "op", op)

	// Straight-line fallback keeps trip creation working through provider
	// outages; the result is flagged so fares based on it are visibly
	// estimates.
	distance := location.HaversineKm(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return models.RouteInfo{
		DistanceKm:  distance,
		DurationMin: int(distance * 3), // rough urban average of 20 km/h
		Estimated:   true,
	}, nil
}

func (c *MapboxClient) fetchRoute(ctx context.Context, from, to models.Location) (models.RouteInfo, error) {
	const op = "MapboxClient.fetchRoute"

	url := fmt.Sprintf("%s/directions/v5/mapbox/driving/%f,%f;%f,%f?access_token=%s&overview=false",
		domain, from.Longitude, from.Latitude, to.Longitude, to.Latitude, c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.RouteInfo{}, fmt.Errorf("%s: build request: %w", op, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.RouteInfo{}, fmt.Errorf("%s: %w: %w", op, types.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RouteInfo{}, fmt.Errorf("%s: %w: unexpected status %d", op, types.ErrCollaboratorUnavailable, resp.StatusCode)
	}

	var payload directionsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.RouteInfo{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if payload.Code != "Ok" || len(payload.Routes) == 0 {
		return models.RouteInfo{}, fmt.Errorf("%s: no route found (code %s)", op, payload.Code)
	}

	best := payload.Routes[0]
	return models.RouteInfo{
		DistanceKm:  best.Distance / 1000,
		DurationMin: int(best.Duration / 60),
	}, nil
}
