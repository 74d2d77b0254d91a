// Package planner builds and solves one home's 48-step MILP each step
// and interprets the result into a ProposalResult the community
// controller can negotiate over.
package planner

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/wmarritt/hems/home"
	"github.com/wmarritt/hems/milp"
	"github.com/wmarritt/hems/tables"
)

// Status mirrors home.Status; planner is the package that actually
// produces these values, home merely carries them into Commit.
type Status = home.Status

const (
	StatusOptimal      = home.StatusOptimal
	StatusSafeMode     = home.StatusSafeMode
	StatusDumbFallback = home.StatusDumbFallback
)

// ProposalResult is one home's planned response to a step: the status
// it reached, the 48-slot import profile the community aggregates to
// check against the transformer limit, the concrete first-step actions,
// which appliances start at slot 0, and a human-readable explanation.
type ProposalResult struct {
	HouseID int
	Status  Status

	ProposedImportProfile []float64 // kW, length 48

	Import0               float64
	Charge0               float64
	Discharge0            float64
	ExcessAboveHouseLimit float64
	NextSoCE              float64
	NextSoCTh             float64
	NextTFridge           float64
	NextTFreezer          float64
	FridgeCompressorPower float64

	StartingAppliances []tables.ApplianceID
	Explanation        string
}

// CommitInput converts the proposal into the record home.State.Commit
// needs. SafeMode/DumbFallback proposals still populate this, but
// Commit ignores everything except Status for those branches.
func (r ProposalResult) CommitInput() home.CommitInput {
	return home.CommitInput{
		Status:                r.Status,
		NextSoCE:              r.NextSoCE,
		NextSoCTh:             r.NextSoCTh,
		NextTFridge:           r.NextTFridge,
		NextTFreezer:          r.NextTFreezer,
		FridgeCompressorPower: r.FridgeCompressorPower,
		StartingAppliances:    r.StartingAppliances,
	}
}

// Planner holds the parameters and static tables shared by every
// propose() call for one home; it carries no mutable state of its own.
type Planner struct {
	Delta             float64
	COP               float64
	ChargeRateMax     float64
	DischargeRateMax  float64
	BatteryEfficiency float64
	ImportMax         float64
	WearCostElec      float64
	WearCostTherm     float64
	SolverTimeLimit   time.Duration

	Profiles *tables.Profiles
}

// New builds a Planner from a config and the static tables every home
// shares.
func New(cfg *Config, profiles *tables.Profiles) *Planner {
	return &Planner{
		Delta:             cfg.Delta,
		COP:               cfg.COP,
		ChargeRateMax:     cfg.ChargeRateMax,
		DischargeRateMax:  cfg.DischargeRateMax,
		BatteryEfficiency: cfg.BatteryEfficiency,
		ImportMax:         cfg.ImportMax,
		WearCostElec:      cfg.WearCostElec,
		WearCostTherm:     cfg.WearCostTherm,
		SolverTimeLimit:   cfg.SolverTimeLimit,
		Profiles:          profiles,
	}
}

// Config is the subset of the shared application config a Planner
// needs; declared here (rather than importing the root package) to
// keep planner free of any dependency on the root package.
type Config struct {
	Delta             float64
	COP               float64
	ChargeRateMax     float64
	DischargeRateMax  float64
	BatteryEfficiency float64
	ImportMax         float64
	WearCostElec      float64
	WearCostTherm     float64
	SolverTimeLimit   time.Duration
}

// Propose builds and solves the 48-step MILP for snapshot at
// currentStep given the community's penalty vector. snapshot must be
// a value obtained from home.State.Snapshot, the planner never
// mutates state itself.
func (p *Planner) Propose(snapshot home.State, currentStep int, penalty []float64) ProposalResult {
	b := newBuilder(p, snapshot, currentStep, penalty)
	b.build()

	sol, err := b.model.Solve(p.SolverTimeLimit)
	if err != nil || sol.Status != milp.StatusOptimal {
		return dumbFallback(p, snapshot, currentStep)
	}

	return b.interpret(sol)
}

// dumbFallback handles a non-optimal solve: a proposal whose import
// profile is zero everywhere except slot 0, computed directly from
// static tables and
// locked-in history rather than any solved schedule.
func dumbFallback(p *Planner, snapshot home.State, currentStep int) ProposalResult {
	prof := p.Profiles
	abs0 := tables.SlotOfDay(currentStep)

	immediateDemand := prof.ElectricDemandPerHouse[abs0]
	starting := make([]tables.ApplianceID, 0)

	for _, a := range prof.Catalog.Appliances {
		if snapshot.AlreadyRun[a.ID] {
			continue
		}
		s := int(a.TS * tables.StepsPerHour)
		if abs0 == s {
			immediateDemand += a.Power
			starting = append(starting, a.ID)
		}
	}

	for _, a := range prof.Catalog.Appliances {
		for past := 1; past < a.Slots; past++ {
			v, ok := snapshot.History.Get(currentStep-past, a.ID)
			if ok && v >= 0.5 {
				immediateDemand += a.Power
				break
			}
		}
	}

	solar0 := snapshot.PVCapacity * prof.SolarProfile[abs0]
	import0 := math.Max(0, immediateDemand-solar0)

	profile := make([]float64, tables.HorizonSlots)
	profile[0] = import0

	return ProposalResult{
		HouseID:                snapshot.HouseID,
		Status:                 StatusDumbFallback,
		ProposedImportProfile:  profile,
		Import0:                import0,
		NextSoCE:               snapshot.SoCE,
		NextSoCTh:              snapshot.SoCTh,
		NextTFridge:            snapshot.TFridge,
		NextTFreezer:           snapshot.TFreezer,
		FridgeCompressorPower:  1, // reported as fully on by convention when falling back
		StartingAppliances:     starting,
		Explanation:            "Dumb fallback: solver non-optimal, serving immediate demand only",
	}
}

// SafeModeProposal synthesizes the community's fallback for a home
// whose own propose() call returned non-optimal mid-negotiation: a
// flat 1 kW profile with no battery action.
func SafeModeProposal(houseID int) ProposalResult {
	profile := make([]float64, tables.HorizonSlots)
	for i := range profile {
		profile[i] = 1.0
	}
	return ProposalResult{
		HouseID:               houseID,
		Status:                StatusSafeMode,
		ProposedImportProfile: profile,
		Import0:               1.0,
		Explanation:           "Controller Fallback Mode",
	}
}

// noiseSource seeds a per-(house, step) deterministic PRNG so the
// objective's tie-breaking noise term is reproducible across runs of
// the same simulation yet distinct per home and per step.
func noiseSource(houseID, currentStep int) *rand.Rand {
	seed1 := uint64(houseID)*1_000_003 + uint64(currentStep)
	seed2 := uint64(currentStep)*2_654_435_761 + uint64(houseID) + 1
	return rand.New(rand.NewPCG(seed1, seed2))
}

