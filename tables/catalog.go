package tables

import "fmt"

// ApplianceID is a small integer id interned from an appliance's name
// at catalog-load time, kept small and dense so it can index directly
// into the MILP layer's per-appliance variable maps rather than
// carrying strings through it.
type ApplianceID int

// Appliance is an immutable catalog entry describing one deferrable
// load's scheduling window and power draw.
type Appliance struct {
	ID    ApplianceID
	Name  string
	TS    float64 // earliest start hour, may be combined with TF to wrap past midnight
	TF    float64 // latest finish hour
	P     float64 // duration, hours
	Power float64 // kW while running
	Slots int     // P / SlotHours, precomputed
}

// Catalog is a loaded, validated, name-interned appliance list.
type Catalog struct {
	Appliances []Appliance
	byName     map[string]ApplianceID
}

// ByName looks up an appliance by its catalog name.
func (c *Catalog) ByName(name string) (Appliance, bool) {
	id, ok := c.byName[name]
	if !ok {
		return Appliance{}, false
	}
	return c.Appliances[id], true
}

// MaxSlots returns the widest Slots value in the catalog, used to size
// a home's history ring buffer.
func (c *Catalog) MaxSlots() int {
	max := 0
	for _, a := range c.Appliances {
		if a.Slots > max {
			max = a.Slots
		}
	}
	return max
}

// applianceSpec is the raw hour/kW definition before Slots/ID are
// derived.
type applianceSpec struct {
	Name  string
	TS    float64
	TF    float64
	P     float64
	Power float64
}

// defaultApplianceSpecs is the shipped catalog of deferrable loads,
// including the midnight-wrapping "Electric car" entry whose window
// runs from 18:00 to 08:00.
var defaultApplianceSpecs = []applianceSpec{
	{"Dish washer", 9, 17, 2, 1.0},
	{"Washing machine", 9, 12, 1.5, 1.2},
	{"Spin dryer", 13, 18, 1, 2.5},
	{"Cooker hob", 8, 9, 0.5, 3},
	{"Cooker oven", 18, 19, 0.5, 5},
	{"Microwave", 8, 9, 0.5, 1.7},
	{"Interior lighting", 18, 24, 6, 0.84},
	{"Laptop", 18, 24, 2, 0.1},
	{"Desktop", 18, 24, 3, 0.3},
	{"Vacuum cleaner", 9, 17, 0.5, 1.2},
	{"Electric car", 18, 8, 3, 3.5},
}

// FridgeApplianceName is the fridge's display name. The fridge is not
// a schedulable binary-start appliance (its duty cycle is a continuous
// MILP variable), so it is kept out of the catalog proper and handled
// directly by the home state and planner; home.History records its
// compressor firings under a sentinel ApplianceID, not under this name.
const FridgeApplianceName = "Fridge"

// DefaultCatalog builds, derives Slots/ID for, and validates the
// shipped appliance catalog.
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(defaultApplianceSpecs)
}

// NewCatalog derives Slots and interned IDs for the given specs and
// validates them, returning an error on the first violation found.
func NewCatalog(specs []applianceSpec) (*Catalog, error) {
	seen := make(map[string]bool, len(specs))
	appliances := make([]Appliance, 0, len(specs))
	byName := make(map[string]ApplianceID, len(specs))

	for i, s := range specs {
		if seen[s.Name] {
			return nil, fmt.Errorf("invalid catalog: duplicate appliance name %q", s.Name)
		}
		seen[s.Name] = true

		if s.P <= 0 || s.P > 24 {
			return nil, fmt.Errorf("invalid catalog: appliance %q duration P=%.2f must be in (0, 24]", s.Name, s.P)
		}

		if s.TS == s.TF {
			return nil, fmt.Errorf("invalid catalog: appliance %q has a zero-width window (T_S == T_F == %.2f)", s.Name, s.TS)
		}

		slots := int(s.P * StepsPerHour)
		if slots <= 0 {
			return nil, fmt.Errorf("invalid catalog: appliance %q resolves to zero slots", s.Name)
		}

		id := ApplianceID(i)
		appliances = append(appliances, Appliance{
			ID:    id,
			Name:  s.Name,
			TS:    s.TS,
			TF:    s.TF,
			P:     s.P,
			Power: s.Power,
			Slots: slots,
		})
		byName[s.Name] = id
	}

	return &Catalog{Appliances: appliances, byName: byName}, nil
}

// ValidateCatalog re-checks an already-built catalog, used by callers
// that construct a Catalog from a config file rather than NewCatalog.
func ValidateCatalog(c *Catalog) error {
	specs := make([]applianceSpec, 0, len(c.Appliances))
	for _, a := range c.Appliances {
		specs = append(specs, applianceSpec{a.Name, a.TS, a.TF, a.P, a.Power})
	}
	_, err := NewCatalog(specs)
	return err
}
