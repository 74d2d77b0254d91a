package tables

import "fmt"

// Profiles bundles the five half-hourly, length-48 arrays every home
// planner reads from, plus the validated appliance catalog.
type Profiles struct {
	ElectricDemandPerHouse []float64 // kW
	HeatDemandPerHouse     []float64 // kW
	SolarProfile           []float64 // unit multiplier, 0..1
	PriceGridElec          []float64 // currency/kWh
	CO2Grid                []float64 // kg/kWh
	Catalog                *Catalog
}

// defaultHeatDemand is a synthetic daily heat demand curve, peaking
// in the morning and evening.
var defaultHeatDemand = []float64{
	0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1,
	0.2, 0.5, 1.2, 1.8, 2.0, 1.8, 1.0, 0.5,
	0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3,
	0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.4,
	0.5, 0.8, 1.2, 1.5, 1.8, 2.0, 2.0, 1.8,
	1.5, 1.0, 0.8, 0.5, 0.3, 0.2, 0.2, 0.1,
}

var defaultCO2Grid = []float64{
	0.40, 0.40, 0.39, 0.38, 0.37, 0.36, 0.37, 0.38, 0.39, 0.40, 0.40, 0.39,
	0.38, 0.37, 0.36, 0.35, 0.34, 0.33, 0.32, 0.31, 0.30, 0.29, 0.29, 0.30,
	0.32, 0.35, 0.38, 0.40, 0.41, 0.40, 0.39, 0.35, 0.32, 0.30, 0.29, 0.29,
	0.30, 0.35, 0.38, 0.39, 0.38, 0.37, 0.37, 0.36, 0.36, 0.37, 0.38, 0.39,
}

var defaultPriceGridElec = []float64{
	0.07, 0.07, 0.07, 0.07, 0.07, 0.07, 0.07, 0.07, 0.08, 0.09, 0.10, 0.12,
	0.25, 0.30, 0.35, 0.37, 0.37, 0.35, 0.30, 0.25,
	0.20, 0.18, 0.18, 0.18, 0.18, 0.18, 0.18, 0.18, 0.20, 0.22, 0.25, 0.28,
	0.40, 0.45, 0.50, 0.50, 0.45, 0.40,
	0.30, 0.25, 0.20, 0.15, 0.12, 0.10, 0.09, 0.08, 0.07, 0.07,
}

// flatElectricDemand builds a flat low-background-load default.
func flatElectricDemand(kw float64) []float64 {
	out := make([]float64, SlotsPerDay)
	for i := range out {
		out[i] = kw
	}
	return out
}

// Options configures Load's defaults; a zero-value Options yields the
// flat 0.15kW demand and static solar curve.
type Options struct {
	// FlatElectricDemandKW is the per-slot background electrical load
	// when no override is supplied. Defaults to 0.15 kW.
	FlatElectricDemandKW float64

	// UseSunCalcSolar switches the solar profile from the original
	// study's implicit flat/static shape to one derived from actual
	// sun position at Latitude/Longitude (see solar.go).
	UseSunCalcSolar     bool
	Latitude, Longitude float64
}

// DefaultOptions returns the static table defaults: a flat 0.15kW
// background electrical demand and the built-in static solar curve.
func DefaultOptions() Options {
	return Options{FlatElectricDemandKW: 0.15}
}

// Load builds a Profiles bundle from the given options, validating the
// appliance catalog eagerly so a malformed catalog fails at startup
// rather than mid-simulation.
func Load(opts Options) (*Profiles, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	demandKW := opts.FlatElectricDemandKW
	if demandKW == 0 {
		demandKW = 0.15
	}

	var solar []float64
	if opts.UseSunCalcSolar {
		solar = SunCalcSolarProfile(opts.Latitude, opts.Longitude)
	} else {
		solar = StaticSolarProfile()
	}

	return &Profiles{
		ElectricDemandPerHouse: flatElectricDemand(demandKW),
		HeatDemandPerHouse:     append([]float64(nil), defaultHeatDemand...),
		SolarProfile:           solar,
		PriceGridElec:          append([]float64(nil), defaultPriceGridElec...),
		CO2Grid:                append([]float64(nil), defaultCO2Grid...),
		Catalog:                catalog,
	}, nil
}

// SlotOfDay maps an absolute simulation step to its slot-of-day index.
func SlotOfDay(absoluteStep int) int {
	s := absoluteStep % SlotsPerDay
	if s < 0 {
		s += SlotsPerDay
	}
	return s
}

// IsDayBoundary reports whether absoluteStep is the first step of a
// new day (t % N == 0), the point at which the simulation driver
// resets every home's already-run flags before negotiation.
func IsDayBoundary(absoluteStep int) bool {
	return absoluteStep%SlotsPerDay == 0
}
