package planner

import (
	"math"
	"testing"
	"time"

	"github.com/wmarritt/hems/home"
	"github.com/wmarritt/hems/tables"
)

func testPlanner(t *testing.T) (*Planner, *tables.Profiles) {
	t.Helper()
	profiles, err := tables.Load(tables.DefaultOptions())
	if err != nil {
		t.Fatalf("tables.Load() returned error: %v", err)
	}
	p := New(&Config{
		Delta:             tables.SlotHours,
		COP:               3.0,
		ChargeRateMax:     10,
		DischargeRateMax:  10,
		BatteryEfficiency: 0.95,
		ImportMax:         5,
		WearCostElec:      0.005,
		WearCostTherm:     0.001,
		SolverTimeLimit:   10 * time.Second,
	}, profiles)
	return p, profiles
}

func TestProposeOptimalReturnsFeasibleSchedule(t *testing.T) {
	p, profiles := testPlanner(t)
	state := home.NewState(0, 5.1, 10.0, 20.0, 1.0, profiles.Catalog)

	result := p.Propose(state.Snapshot(), 20, make([]float64, tables.HorizonSlots))

	if result.Status != StatusOptimal {
		t.Fatalf("expected StatusOptimal, got %v", result.Status)
	}
	if len(result.ProposedImportProfile) != tables.HorizonSlots {
		t.Fatalf("expected a 48-slot import profile, got %d", len(result.ProposedImportProfile))
	}
	for k, v := range result.ProposedImportProfile {
		if v < -1e-6 {
			t.Errorf("slot %d: import profile must be non-negative, got %v", k, v)
		}
	}
	if result.NextSoCE < 0 || result.NextSoCE > state.BatteryCapacity {
		t.Errorf("NextSoCE %v out of [0, %v]", result.NextSoCE, state.BatteryCapacity)
	}
}

// S5 Solver fallback: force infeasibility (I_max=0, no solar, positive
// demand) and expect the dumb-fallback contract exactly.
func TestProposeFallsBackWhenInfeasible(t *testing.T) {
	profiles, err := tables.Load(tables.DefaultOptions())
	if err != nil {
		t.Fatalf("tables.Load() returned error: %v", err)
	}
	for i := range profiles.SolarProfile {
		profiles.SolarProfile[i] = 0
	}

	p := New(&Config{
		Delta:             tables.SlotHours,
		COP:               3.0,
		ChargeRateMax:     10,
		DischargeRateMax:  10,
		BatteryEfficiency: 0.95,
		ImportMax:         0,
		WearCostElec:      0.005,
		WearCostTherm:     0.001,
		SolverTimeLimit:   time.Second,
	}, profiles)

	state := home.NewState(0, 5.1, 10.0, 20.0, 0.0, profiles.Catalog)
	result := p.Propose(state.Snapshot(), 0, make([]float64, tables.HorizonSlots))

	if result.Status != StatusDumbFallback {
		t.Fatalf("expected StatusDumbFallback, got %v", result.Status)
	}
	expectedImport0 := math.Max(0, profiles.ElectricDemandPerHouse[0]-0)
	if math.Abs(result.ProposedImportProfile[0]-expectedImport0) > 1e-9 {
		t.Errorf("expected slot-0 import %v, got %v", expectedImport0, result.ProposedImportProfile[0])
	}
	for k := 1; k < tables.HorizonSlots; k++ {
		if result.ProposedImportProfile[k] != 0 {
			t.Errorf("expected zero import at slot %d under dumb fallback, got %v", k, result.ProposedImportProfile[k])
		}
	}
	if result.NextSoCE != state.SoCE {
		t.Errorf("expected battery untouched under dumb fallback, got NextSoCE=%v want %v", result.NextSoCE, state.SoCE)
	}
}

func TestSafeModeProposalIsFlatOneKW(t *testing.T) {
	r := SafeModeProposal(3)
	if r.Status != StatusSafeMode {
		t.Fatalf("expected StatusSafeMode, got %v", r.Status)
	}
	for k, v := range r.ProposedImportProfile {
		if v != 1.0 {
			t.Errorf("slot %d: expected flat 1kW safe-mode profile, got %v", k, v)
		}
	}
	if r.Explanation != "Controller Fallback Mode" {
		t.Errorf("unexpected explanation: %q", r.Explanation)
	}
}

func TestNoiseSourceIsDeterministicPerHomeAndStep(t *testing.T) {
	a := noiseSource(2, 17)
	b := noiseSource(2, 17)
	for i := 0; i < 5; i++ {
		va, vb := a.Float64(), b.Float64()
		if va != vb {
			t.Fatalf("expected identical sequences for the same (home, step) seed, got %v vs %v", va, vb)
		}
	}
}

func TestValidStartsClosesWindowAfterFirstGap(t *testing.T) {
	cat, err := tables.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() returned error: %v", err)
	}
	dishwasher, ok := cat.ByName("Dish washer") // T_S=9, T_F=17, slots=4
	if !ok {
		t.Fatalf("expected 'Dish washer' in catalog")
	}

	starts := validStarts(dishwasher, 0)
	if len(starts) == 0 {
		t.Fatalf("expected at least one valid start for Dish washer at currentStep=0")
	}
	for i := 1; i < len(starts); i++ {
		if starts[i] != starts[i-1]+1 {
			t.Fatalf("expected contiguous valid starts, got gap between %d and %d", starts[i-1], starts[i])
		}
	}
}

// S3-style wrap-around window: "Electric car" runs T_S=18..T_F=8, i.e.
// its valid window wraps past midnight.
func TestValidStartsHandlesWrapAroundWindow(t *testing.T) {
	cat, err := tables.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() returned error: %v", err)
	}
	car, ok := cat.ByName("Electric car")
	if !ok {
		t.Fatalf("expected 'Electric car' in catalog")
	}

	starts := validStarts(car, 36) // currentStep=36 -> abs slot 36 (hour 18), inside the window
	if len(starts) == 0 {
		t.Fatalf("expected Electric car to have a valid start when the horizon begins inside its window")
	}
	if starts[0] != 0 {
		t.Errorf("expected the window to already be open at k=0, got first valid start %d", starts[0])
	}
}
