package service

import (
	"math"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"
)

// DynamicChargeCurrent maps the battery state of charge to a charge-current limit that
// shrinks linearly as the battery fills up. SoC is rounded to the nearest ten percent first,
// with halves going to the even decade (85 -> 80, 95 -> 100).
func DynamicChargeCurrent(soc float64, maxChargeCurrent uint32) float64 {
	rounded := roundToDecade(soc)
	return math.Round((101 - rounded) * float64(maxChargeCurrent) / 100)
}

func roundToDecade(soc float64) float64 {
	soc = math.Max(0, math.Min(100, soc))
	return math.RoundToEven(soc/10) * 10
}

func needsStateOfCharge(snap domain.ActuatorSnapshot) bool {
	return snap.CarState == domain.CarStateCharging && snap.Mode == domain.ChargeModeEco
}
