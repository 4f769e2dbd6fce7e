package payment

import (
	"math"
	"testing"

	"github.com/uit-go/ridehail/internal/domain/types"
)

func TestEstimateFare(t *testing.T) {
	tests := []struct {
		name       string
		vehicle    types.VehicleType
		distanceKm float64
		want       float64
		wantErr    bool
	}{
		{"bike base only", types.VehicleBike, 0, 15000, false},
		{"bike 10 km", types.VehicleBike, 10, 45000, false},
		{"car base only", types.VehicleCar, 0, 20000, false},
		{"car 10 km", types.VehicleCar, 10, 70000, false},
		{"car fractional distance", types.VehicleCar, 2.5, 32500, false},
		{"unknown vehicle", types.VehicleType("TRUCK"), 5, 0, true},
		{"negative distance", types.VehicleBike, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateFare(tt.vehicle, tt.distanceKm)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EstimateFare() error = %v, wantErr %v", err, tt.wantErr)
			}
			if math.Abs(got-tt.want) > 0.001 {
				t.Fatalf("EstimateFare() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestSplitFare(t *testing.T) {
	earnings, commission := SplitFare(30000, 0.20)
	if earnings != 24000 {
		t.Fatalf("driver earnings = %.0f, want 24000", earnings)
	}
	if commission != 6000 {
		t.Fatalf("commission = %.0f, want 6000", commission)
	}
}
