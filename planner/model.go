package planner

import (
	"github.com/wmarritt/hems/home"
	"github.com/wmarritt/hems/milp"
	"github.com/wmarritt/hems/tables"
)

// epsNoiseMin/epsNoiseMax bound the tie-breaking perturbation added to
// the import-price term of the objective.
const (
	epsNoiseMin = 1e-5
	epsNoiseMax = 1e-4
)

// builder assembles one home's 48-step MILP. It is single-use: build()
// populates model, then interpret() reads back a solved Solution.
type builder struct {
	p    *Planner
	snap home.State
	t    int
	pi   []float64

	model *milp.Model

	se, sth, z, y, imp, iexcess, php, tfr, tfz, pcomp [tables.HorizonSlots]milp.VarID
	applianceVars                                     map[tables.ApplianceID]map[int]milp.VarID

	noise [tables.HorizonSlots]float64
}

func newBuilder(p *Planner, snapshot home.State, currentStep int, penalty []float64) *builder {
	b := &builder{
		p:             p,
		snap:          snapshot,
		t:             currentStep,
		pi:            penalty,
		model:         milp.NewModel(),
		applianceVars: make(map[tables.ApplianceID]map[int]milp.VarID),
	}
	rng := noiseSource(snapshot.HouseID, currentStep)
	for k := range b.noise {
		b.noise[k] = epsNoiseMin + rng.Float64()*(epsNoiseMax-epsNoiseMin)
	}
	return b
}

// build declares every decision variable and constraint the 48-step
// horizon needs and sets the objective coefficients.
func (b *builder) build() {
	const n = tables.HorizonSlots
	prof := b.p.Profiles
	snap := b.snap

	for k := 0; k < n; k++ {
		b.se[k] = b.model.AddVar(0, snap.BatteryCapacity, false)
		b.sth[k] = b.model.AddVar(0, snap.ThermalCapacity, false)
		b.z[k] = b.model.AddVar(0, b.p.ChargeRateMax, false)
		b.y[k] = b.model.AddVar(0, b.p.DischargeRateMax, false)
		b.imp[k] = b.model.AddVar(0, b.p.ImportMax, false)
		// I_excess has no natural upper bound; I_max is a safe finite
		// cap since import can never usefully exceed it.
		b.iexcess[k] = b.model.AddVar(0, b.p.ImportMax, false)
		b.php[k] = b.model.AddVar(0, 10, false)
		b.tfr[k] = b.model.AddVar(tables.FridgeTempMin, tables.FridgeTempMax, false)
		b.tfz[k] = b.model.AddVar(tables.FreezerTempMin, tables.FreezerTempMax, false)
		b.pcomp[k] = b.model.AddVar(0, 0.3, false)
	}

	for _, a := range prof.Catalog.Appliances {
		if snap.AlreadyRun[a.ID] {
			continue // forced E[a,k]=0 for all k by never creating the variable
		}
		starts := validStarts(a, b.t)
		if len(starts) == 0 {
			continue // no valid window this horizon; nothing to schedule
		}
		vars := make(map[int]milp.VarID, len(starts))
		coeffs := make(map[milp.VarID]float64, len(starts))
		for _, k := range starts {
			v := b.model.AddVar(0, 1, true)
			vars[k] = v
			coeffs[v] = 1
		}
		b.applianceVars[a.ID] = vars
		b.model.AddConstraint(coeffs, milp.EQ, 1)
	}

	b.addDynamics()
	b.addImportCapAndPowerBalance()
	b.model.AddConstraint(map[milp.VarID]float64{b.se[tables.HorizonSlots-1]: 1}, milp.GE, snap.SoCE)
	b.setObjective()
}

func (b *builder) addDynamics() {
	const n = tables.HorizonSlots
	nuE := b.p.BatteryEfficiency
	delta := b.p.Delta
	cop := b.p.COP
	prof := b.p.Profiles

	for k := 0; k < n; k++ {
		abs := tables.SlotOfDay(b.t + k)
		heat := prof.HeatDemandPerHouse[abs]

		if k == 0 {
			b.model.AddConstraint(map[milp.VarID]float64{
				b.se[0]: 1, b.z[0]: -nuE * delta, b.y[0]: delta / nuE,
			}, milp.EQ, b.snap.SoCE)
			b.model.AddConstraint(map[milp.VarID]float64{
				b.sth[0]: 1, b.php[0]: -cop * delta,
			}, milp.EQ, b.snap.SoCTh-heat*delta)
			b.model.AddConstraint(map[milp.VarID]float64{
				b.tfr[0]: 1, b.pcomp[0]: tables.FridgeCompressorDraw * delta,
			}, milp.EQ, b.snap.TFridge+tables.FridgeThaw*delta)
			b.model.AddConstraint(map[milp.VarID]float64{
				b.tfz[0]: 1, b.pcomp[0]: tables.FreezerCompressorDraw * delta,
			}, milp.EQ, b.snap.TFreezer+tables.FreezerThaw*delta)
			continue
		}

		b.model.AddConstraint(map[milp.VarID]float64{
			b.se[k]: 1, b.se[k-1]: -1, b.z[k]: -nuE * delta, b.y[k]: delta / nuE,
		}, milp.EQ, 0)
		b.model.AddConstraint(map[milp.VarID]float64{
			b.sth[k]: 1, b.sth[k-1]: -1, b.php[k]: -cop * delta,
		}, milp.EQ, -heat*delta)
		b.model.AddConstraint(map[milp.VarID]float64{
			b.tfr[k]: 1, b.tfr[k-1]: -1, b.pcomp[k]: tables.FridgeCompressorDraw * delta,
		}, milp.EQ, tables.FridgeThaw*delta)
		b.model.AddConstraint(map[milp.VarID]float64{
			b.tfz[k]: 1, b.tfz[k-1]: -1, b.pcomp[k]: tables.FreezerCompressorDraw * delta,
		}, milp.EQ, tables.FreezerThaw*delta)
	}
}

func (b *builder) addImportCapAndPowerBalance() {
	const n = tables.HorizonSlots
	prof := b.p.Profiles

	for k := 0; k < n; k++ {
		b.model.AddConstraint(map[milp.VarID]float64{
			b.imp[k]: 1, b.iexcess[k]: -1,
		}, milp.LE, b.snap.HouseLimit)

		abs := tables.SlotOfDay(b.t + k)
		base := prof.ElectricDemandPerHouse[abs]
		solar := b.snap.PVCapacity * prof.SolarProfile[abs]
		locked := lockedPowerAt(b.snap, prof.Catalog, b.t, k)

		coeffs := map[milp.VarID]float64{
			b.imp[k]: -1, b.y[k]: -1, b.php[k]: 1, b.z[k]: 1, b.pcomp[k]: 0.3,
		}
		for id, vars := range b.applianceVars {
			a, _ := applianceByID(prof.Catalog, id)
			for ks, v := range vars {
				if ks <= k && k-ks < a.Slots {
					coeffs[v] += a.Power
				}
			}
		}

		b.model.AddConstraint(coeffs, milp.LE, solar-base-locked)
	}
}

func (b *builder) setObjective() {
	const n = tables.HorizonSlots
	prof := b.p.Profiles
	delta := b.p.Delta

	for k := 0; k < n; k++ {
		abs := tables.SlotOfDay(b.t + k)
		price := prof.PriceGridElec[abs] + b.pi[k] + b.noise[k]
		b.model.SetObjectiveCoeff(b.imp[k], delta*price)
		b.model.SetObjectiveCoeff(b.iexcess[k], 1000)
		b.model.SetObjectiveCoeff(b.y[k], delta*b.p.WearCostElec)
		b.model.SetObjectiveCoeff(b.php[k], delta*b.p.WearCostTherm)
	}
}

// interpret reads a solved, optimal Solution back into a ProposalResult.
func (b *builder) interpret(sol milp.Solution) ProposalResult {
	x := sol.X
	prof := b.p.Profiles

	profile := make([]float64, tables.HorizonSlots)
	for k := range profile {
		profile[k] = x[b.imp[k]]
	}

	var starting []tables.ApplianceID
	for id, vars := range b.applianceVars {
		if v, ok := vars[0]; ok && x[v] >= 0.5 {
			starting = append(starting, id)
		}
	}

	abs0 := tables.SlotOfDay(b.t)
	solar0 := b.snap.PVCapacity * prof.SolarProfile[abs0]
	base0 := prof.ElectricDemandPerHouse[abs0]
	price0 := prof.PriceGridElec[abs0]
	discharge0 := x[b.y[0]]
	charge0 := x[b.z[0]]

	explanation := "Normal operation"
	switch {
	case discharge0 > 1e-6 && b.pi[0] > 1e-9:
		explanation = "Discharging battery to avoid community penalty"
	case charge0 > 1e-6 && solar0 > base0:
		explanation = "Charging battery from excess solar"
	case discharge0 > 1e-6 && price0 >= 0.20:
		explanation = "Discharging battery during peak price"
	}

	return ProposalResult{
		HouseID:                b.snap.HouseID,
		Status:                 StatusOptimal,
		ProposedImportProfile:  profile,
		Import0:                x[b.imp[0]],
		Charge0:                charge0,
		Discharge0:             discharge0,
		ExcessAboveHouseLimit:  x[b.iexcess[0]],
		NextSoCE:               x[b.se[0]],
		NextSoCTh:              x[b.sth[0]],
		NextTFridge:            x[b.tfr[0]],
		NextTFreezer:           x[b.tfz[0]],
		FridgeCompressorPower:  x[b.pcomp[0]],
		StartingAppliances:     starting,
		Explanation:            explanation,
	}
}

func applianceByID(c *tables.Catalog, id tables.ApplianceID) (tables.Appliance, bool) {
	for _, a := range c.Appliances {
		if a.ID == id {
			return a, true
		}
	}
	return tables.Appliance{}, false
}

// applianceWindow reports whether local slot k (relative to currentStep)
// falls inside appliance a's start window.
func applianceWindow(a tables.Appliance, currentStep, k int) (valid bool, absT int) {
	absT = tables.SlotOfDay(currentStep + k)
	s := int(a.TS * tables.StepsPerHour)
	f := int(a.TF*tables.StepsPerHour) - a.Slots
	f = ((f % tables.SlotsPerDay) + tables.SlotsPerDay) % tables.SlotsPerDay

	if s <= f {
		valid = absT >= s && absT <= f
	} else {
		valid = absT >= s || absT <= f
	}
	return valid, absT
}

// validStarts walks the horizon and returns the local slots a may
// start at: every slot its window is open, up until the first closure
// (an invalid slot following a valid one), after which the window is
// closed for the rest of the horizon.
func validStarts(a tables.Appliance, currentStep int) []int {
	var starts []int
	open := true
	sawValid := false
	for k := 0; k < tables.HorizonSlots; k++ {
		isValid, _ := applianceWindow(a, currentStep, k)
		if isValid {
			sawValid = true
			if open {
				starts = append(starts, k)
			}
		} else if sawValid {
			open = false
		}
	}
	return starts
}

// lockedPowerAt returns the power contribution at local slot k from
// appliances that started before the horizon began and are still
// running.
func lockedPowerAt(snap home.State, catalog *tables.Catalog, currentStep, k int) float64 {
	total := 0.0
	for _, a := range catalog.Appliances {
		for past := 1; past < a.Slots; past++ {
			v, ok := snap.History.Get(currentStep-past, a.ID)
			if ok && v >= 0.5 && k+past < a.Slots {
				total += a.Power
				break
			}
		}
	}
	return total
}
