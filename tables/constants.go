// Package tables holds the static data a home planner consumes each
// step: half-hourly demand/heat/solar/price/CO2 profiles and the
// appliance catalog, plus the fridge and freezer's physical constants.
package tables

// Slot grid.
const (
	SlotHours       = 0.5 // Delta, hours per slot
	SlotsPerDay     = 48  // N
	StepsPerHour    = 2   // 1 / SlotHours
	HorizonSlots    = 48  // MPC look-ahead, equal to SlotsPerDay by design
)

// Fridge/freezer thermal-response constants: thaw rate in degrees per
// hour, and compressor cooling rate in degrees per hour per kW of
// compressor power (the planner multiplies both by the slot length).
const (
	FridgeThaw            = 0.1196
	FridgeCompressorDraw  = (0.1467 + 0.1196) / 0.3
	FreezerThaw           = 15.0 / 67.0
	FreezerCompressorDraw = (7.0/25.0 + 15.0/67.0) / 0.3
)

// Fridge/freezer hard temperature bands.
const (
	FridgeTempMin  = 2.0
	FridgeTempMax  = 5.0
	FreezerTempMin = -22.0
	FreezerTempMax = -15.0
)
