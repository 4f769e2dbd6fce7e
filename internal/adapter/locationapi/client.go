package locationapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/uuid"
)

const nearbyPath = "/v1/location/nearby"

// Client queries the location service for nearby drivers. It implements
// the finder side of the matcher.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	l       logger.Logger
}

func New(baseURL, token string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		l:       log,
	}
}

type nearbyResponse struct {
	Drivers []struct {
		DriverID   uuid.UUID `json:"driver_id"`
		Latitude   float64   `json:"latitude"`
		Longitude  float64   `json:"longitude"`
		DistanceKm float64   `json:"distance_km"`
	} `json:"drivers"`
}

func (c *Client) FindNearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyDriver, error) {
	const op = "locationapi.Client.FindNearby"

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	if radiusKm > 0 {
		q.Set("radius_km", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+nearbyPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("X-Internal-Token", c.token)
	if requestID := wrap.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w: %w", op, types.ErrCollaboratorUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w: status %d", op, types.ErrCollaboratorUnavailable, resp.StatusCode))
	}

	var payload nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}

	drivers := make([]models.NearbyDriver, 0, len(payload.Drivers))
	for _, d := range payload.Drivers {
		drivers = append(drivers, models.NearbyDriver{
			DriverID:   d.DriverID,
			Latitude:   d.Latitude,
			Longitude:  d.Longitude,
			DistanceKm: d.DistanceKm,
		})
	}

	return drivers, nil
}
