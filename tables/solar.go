package tables

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// StaticSolarProfile returns a synthetic unit-multiplier curve shaped
// like a daytime bell between 06:00 and 20:00, used when no location
// is configured. This keeps the module runnable without a live solar
// forecast or measured irradiance table.
func StaticSolarProfile() []float64 {
	out := make([]float64, SlotsPerDay)
	for k := range out {
		hour := float64(k) * SlotHours
		if hour < 6 || hour > 20 {
			continue
		}
		// Half-sine between sunrise and sunset, peaking at 13:00,
		// midway between 06:00 and 20:00.
		frac := (hour - 6) / 14.0
		out[k] = math.Sin(frac * math.Pi)
	}
	return out
}

// SunCalcSolarProfile derives a unit-multiplier curve from actual sun
// altitude at the given location on a reference day, using an
// altitude-factor technique (no cloud-cover adjustment, since that
// would require a live weather feed this module has no access to).
func SunCalcSolarProfile(lat, lon float64) []float64 {
	out := make([]float64, SlotsPerDay)
	ref := time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC)

	for k := range out {
		minutesPastMidnight := int(float64(k) * SlotHours * 60)
		t := ref.Add(time.Duration(minutesPastMidnight) * time.Minute)

		pos := suncalc.GetPosition(t, lat, lon)
		if pos.Altitude <= 0 {
			continue
		}

		factor := math.Sin(pos.Altitude)
		if factor < 0 {
			factor = 0
		}
		out[k] = factor
	}
	return out
}
