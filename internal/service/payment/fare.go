package payment

import (
	"fmt"

	"github.com/uit-go/ridehail/internal/domain/types"
)

// Fares are in VND, which has no fractional unit in practice.
type FareRate struct {
	Base  float64
	PerKm float64
}

var fareRates = map[types.VehicleType]FareRate{
	types.VehicleBike: {Base: 15000, PerKm: 3000},
	types.VehicleCar:  {Base: 20000, PerKm: 5000},
}

// EstimateFare computes base + perKm * distance for the vehicle class.
func EstimateFare(vehicle types.VehicleType, distanceKm float64) (float64, error) {
	rate, ok := fareRates[vehicle]
	if !ok {
		return 0, fmt.Errorf("no fare rate for vehicle type %q", vehicle)
	}
	if distanceKm < 0 {
		return 0, fmt.Errorf("negative distance %.2f km", distanceKm)
	}
	return rate.Base + rate.PerKm*distanceKm, nil
}

// SplitFare divides a fare between the driver and the platform.
func SplitFare(fare, commissionRate float64) (driverEarnings, commission float64) {
	commission = fare * commissionRate
	return fare - commission, commission
}
