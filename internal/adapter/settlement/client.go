package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
)

const settlePath = "/internal/v1/settlements"

// Client orders fare settlement from the payment service over HTTP.
// Requests carry a shared token; the endpoint is not exposed publicly.
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

type settlePayload struct {
	TripID      string  `json:"trip_id"`
	PassengerID string  `json:"passenger_id"`
	DriverID    string  `json:"driver_id"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
}

type settleResponse struct {
	Settlement models.SettlementResult `json:"settlement"`
	Error      any                     `json:"error"`
}

func (c *Client) Settle(ctx context.Context, req payment.SettleRequest) (models.SettlementResult, error) {
	const op = "settlement.Client.Settle"

	body, err := json.Marshal(settlePayload{
		TripID:      req.TripID.String(),
		PassengerID: req.PassengerID.String(),
		DriverID:    req.DriverID.String(),
		Amount:      req.Amount,
		Method:      string(req.Method),
	})
	if err != nil {
		return models.SettlementResult{}, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+settlePath, bytes.NewReader(body))
	if err != nil {
		return models.SettlementResult{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Internal-Token", c.token)
	if requestID := wrap.GetRequestID(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: %w", op, types.ErrCollaboratorUnavailable, err))
	}
	defer resp.Body.Close()

	var payload settleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.SettlementResult{}, fmt.Errorf("%s: decode response: %w", op, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return payload.Settlement, nil
	case resp.StatusCode == http.StatusPaymentRequired:
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, types.ErrInsufficientFunds))
	case resp.StatusCode >= http.StatusInternalServerError:
		return models.SettlementResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: status %d", op, types.ErrCollaboratorUnavailable, resp.StatusCode))
	default:
		return models.SettlementResult{}, fmt.Errorf("%s: settlement rejected: status %d, error %v", op, resp.StatusCode, payload.Error)
	}
}
