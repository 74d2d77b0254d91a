// Package home owns the per-home physical state the planner and
// community controller treat as an immutable snapshot, and the only
// function allowed to mutate it: Commit.
package home

import (
	"fmt"
	"log"

	"github.com/wmarritt/hems/tables"
)

// Status mirrors the three outcomes a planner's proposal can have,
// duplicated here (rather than importing planner) to keep home a leaf
// package with no dependency on the MILP layer.
type Status int

const (
	StatusOptimal Status = iota
	StatusSafeMode
	StatusDumbFallback
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusSafeMode:
		return "SafeMode"
	case StatusDumbFallback:
		return "DumbFallback"
	default:
		return "Unknown"
	}
}

// CommitInput is the subset of a planner's ProposalResult that Commit
// needs to advance a home's physical state. It is a concrete record
// rather than an open map, so the compiler catches a missing field.
type CommitInput struct {
	Status                Status
	NextSoCE              float64
	NextSoCTh             float64
	NextTFridge           float64
	NextTFreezer          float64
	FridgeCompressorPower float64
	StartingAppliances    []tables.ApplianceID
}

// State is a home's persistent physical state across simulation steps.
// It is owned by the simulation driver; planners only ever see a
// snapshot (via Snapshot) plus the community's penalty vector.
type State struct {
	HouseID         int
	PVCapacity      float64 // kW
	BatteryCapacity float64 // kWh, also C_E
	ThermalCapacity float64 // kWh, also C_TH
	HouseLimit      float64 // kW

	SoCE     float64 // electrical storage SoC, kWh
	SoCTh    float64 // thermal storage SoC, kWh
	TFridge  float64 // deg C
	TFreezer float64 // deg C

	AlreadyRun map[tables.ApplianceID]bool
	History    *History
}

// NewState builds a fresh home at half-charged electrical and thermal
// stores, mid-band fridge/freezer temperatures, nothing run yet.
func NewState(houseID int, pvCapacity, batteryCapacity, thermalCapacity, houseLimit float64, catalog *tables.Catalog) *State {
	return &State{
		HouseID:         houseID,
		PVCapacity:      pvCapacity,
		BatteryCapacity: batteryCapacity,
		ThermalCapacity: thermalCapacity,
		HouseLimit:      houseLimit,
		SoCE:            0.5 * batteryCapacity,
		SoCTh:           0.5 * thermalCapacity,
		TFridge:         4.0,
		TFreezer:        -18.0,
		AlreadyRun:      make(map[tables.ApplianceID]bool, len(catalog.Appliances)),
		History:         NewHistory(catalog.MaxSlots()),
	}
}

// Snapshot returns a value copy of the fields a planner is allowed to
// read, so a concurrently-running solve can never observe (or cause)
// a mutation. AlreadyRun and History are only ever read during
// negotiation, so they are shared, not deep-copied.
func (s *State) Snapshot() State {
	cp := *s
	return cp
}

// ResetDailyFlags clears already-run flags at the start of a new day
// (t % N == 0). It is not called from Commit; the driver calls it once
// per home before negotiation when tables.IsDayBoundary(t) is true.
func (s *State) ResetDailyFlags() {
	for name := range s.AlreadyRun {
		s.AlreadyRun[name] = false
	}
}

// Commit advances a home's state according to its proposal's status:
// an optimal solve's schedule is applied and clamped to valid ranges;
// a safe-mode or dumb-fallback proposal leaves the physical state
// untouched. Commit is the only function allowed to mutate State.
func (s *State) Commit(in CommitInput, absoluteStep int, logger *log.Logger) {
	switch in.Status {
	case StatusOptimal:
		s.SoCE = clamp(in.NextSoCE, 0, s.BatteryCapacity, "SoCE", s.HouseID, logger)
		s.SoCTh = clamp(in.NextSoCTh, 0, s.ThermalCapacity, "SoCTh", s.HouseID, logger)
		s.TFridge = clamp(in.NextTFridge, tables.FridgeTempMin, tables.FridgeTempMax, "TFridge", s.HouseID, logger)
		s.TFreezer = clamp(in.NextTFreezer, tables.FreezerTempMin, tables.FreezerTempMax, "TFreezer", s.HouseID, logger)

		s.History.Record(absoluteStep, fridgeApplianceID, in.FridgeCompressorPower)

		for _, id := range in.StartingAppliances {
			s.AlreadyRun[id] = true
			s.History.Record(absoluteStep, id, 1.0)
		}

	case StatusSafeMode, StatusDumbFallback:
		// State idles; the home absorbs whatever flat import the
		// fallback assumed without advancing batteries or appliances.

	default:
		panic(fmt.Sprintf("home: commit called with unknown status %v", in.Status))
	}
}

// fridgeApplianceID is the sentinel id History records compressor
// firings under; it deliberately falls outside any real catalog's
// interned range (catalog ids start at 0) so it can never collide.
const fridgeApplianceID tables.ApplianceID = -1

// clamp handles an out-of-range proposed value: it implies a
// solver/bug issue, so the value is clamped into range and logged
// rather than propagated.
func clamp(v, lo, hi float64, field string, houseID int, logger *log.Logger) float64 {
	if v < lo {
		if logger != nil {
			logger.Printf("home %d: %s=%.4f below bound %.4f, clamping", houseID, field, v, lo)
		}
		return lo
	}
	if v > hi {
		if logger != nil {
			logger.Printf("home %d: %s=%.4f above bound %.4f, clamping", houseID, field, v, hi)
		}
		return hi
	}
	return v
}
