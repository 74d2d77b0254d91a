// Package sim wires tables, home, planner, and community together into
// a runnable rolling-horizon simulation: a single serial step loop
// over a fixed number of steps, rather than a ticker-driven service.
package sim

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	hems "github.com/wmarritt/hems"
	"github.com/wmarritt/hems/community"
	"github.com/wmarritt/hems/home"
	"github.com/wmarritt/hems/planner"
	"github.com/wmarritt/hems/tables"
	"github.com/wmarritt/hems/telemetry"

	_ "github.com/lib/pq"
)

// Status is a snapshot of a running Driver.
type Status struct {
	IsRunning     bool `json:"is_running"`
	CurrentStep   int  `json:"current_step"`
	TotalSteps    int  `json:"total_steps"`
	HomesCount    int  `json:"homes_count"`
	LastWarning   string `json:"last_warning,omitempty"`
}

// Driver owns every home's state, the community controller that
// negotiates between them, and the optional Postgres/inverter/websocket
// integrations. Its exported surface is guarded by mu so Status can be
// read safely from another goroutine while Run is in progress.
type Driver struct {
	config *hems.Config
	logger *log.Logger

	profiles   *tables.Profiles
	homes      []community.Home
	controller *community.Controller

	db       *sql.DB
	inverter *telemetry.Inverter
	server   *Server

	mu          sync.RWMutex
	isRunning   bool
	currentStep int
	lastWarning string
}

// NewDriver builds a Driver from cfg: it loads the appliance catalog
// and demand/price/solar tables, constructs one home plus one planner
// per configured house, and opens the optional Postgres and inverter
// integrations. A nil logger defaults to log.Default().
func NewDriver(cfg *hems.Config, logger *log.Logger) (*Driver, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim: invalid config: %w", err)
	}

	profiles, err := tables.Load(tables.Options{
		UseSunCalcSolar: cfg.UseSunCalcSolar,
		Latitude:        cfg.Latitude,
		Longitude:       cfg.Longitude,
	})
	if err != nil {
		return nil, fmt.Errorf("sim: failed to load tables: %w", err)
	}

	plannerCfg := &planner.Config{
		Delta:             cfg.Delta,
		COP:               cfg.COP,
		ChargeRateMax:     cfg.ChargeRateMax,
		DischargeRateMax:  cfg.DischargeRateMax,
		BatteryEfficiency: cfg.BatteryEfficiency,
		ImportMax:         cfg.ImportMax,
		WearCostElec:      cfg.WearCostElec,
		WearCostTherm:     cfg.WearCostTherm,
		SolverTimeLimit:   cfg.SolverTimeLimit,
	}

	homes := make([]community.Home, cfg.NumHomes)
	for i := 0; i < cfg.NumHomes; i++ {
		homes[i] = community.Home{
			State:   home.NewState(i, cfg.PVCapacity, cfg.BatteryCapacity, cfg.ThermalCapacity, cfg.HouseLimit, profiles.Catalog),
			Planner: planner.New(plannerCfg, profiles),
		}
	}

	d := &Driver{
		config: cfg,
		logger: logger,
		profiles:   profiles,
		homes:      homes,
		controller: &community.Controller{
			TransformerLimit: cfg.TransformerLimit,
			PenaltyStep:      cfg.PenaltyStep,
			MaxIters:         cfg.MaxIters,
			Logger:           logger,
		},
	}

	if cfg.PostgresConnString != "" {
		db, err := sql.Open("postgres", cfg.PostgresConnString)
		if err != nil {
			logger.Printf("sim: failed to connect to postgres: %v", err)
		} else {
			d.db = db
		}
	}

	if cfg.InverterModbusAddr != "" {
		inv, err := telemetry.Dial(cfg.InverterModbusAddr, 1, cfg.InverterTimeout)
		if err != nil {
			logger.Printf("sim: failed to connect to inverter telemetry: %v", err)
		} else {
			d.inverter = inv
		}
	}

	if cfg.HealthCheckPort > 0 {
		d.server = NewServer(d, cfg.HealthCheckPort)
	}

	return d, nil
}

// Status returns a snapshot of the driver's current run state.
func (d *Driver) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Status{
		IsRunning:   d.isRunning,
		CurrentStep: d.currentStep,
		TotalSteps:  d.config.Steps,
		HomesCount:  len(d.homes),
		LastWarning: d.lastWarning,
	}
}

// Run executes the configured number of simulation steps serially:
// negotiate, then commit in home-id order, then persist, per step.
// Home proposals within a single negotiation round may run in
// parallel (community.Controller handles that); the step loop itself
// never does, since each step's commit depends on the previous step's
// committed state.
func (d *Driver) Run(ctx context.Context) (*Results, error) {
	d.mu.Lock()
	d.isRunning = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.isRunning = false
		d.mu.Unlock()
	}()

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			d.logger.Printf("sim: failed to start status server: %v", err)
		}
		defer d.server.Stop(context.Background())
	}

	results := &Results{
		CommunityDemand: make([]float64, 0, d.config.Steps),
		H0SoC:           make([]float64, 0, d.config.Steps),
	}

	for step := 0; step < d.config.Steps; step++ {
		select {
		case <-ctx.Done():
			return results, fmt.Errorf("sim: run cancelled at step %d: %w", step, ctx.Err())
		default:
		}

		if tables.IsDayBoundary(step) {
			for i := range d.homes {
				d.homes[i].State.ResetDailyFlags()
			}
		}

		negotiation := d.controller.Negotiate(d.homes, step)

		for _, p := range negotiation.Approved {
			d.homes[p.HouseID].State.Commit(p.CommitInput(), step, d.logger)
		}

		if d.db != nil {
			if err := persistStepProposals(ctx, d.db, step, negotiation.Approved); err != nil {
				d.logger.Printf("sim: step %d: failed to persist proposals: %v", step, err)
			}
		}

		if d.inverter != nil {
			if soc, err := d.inverter.ReadBatterySOC(); err != nil {
				d.logger.Printf("sim: step %d: failed to read inverter telemetry: %v", step, err)
			} else {
				d.logger.Printf("sim: step %d: inverter reports battery SOC %.1f%%", step, soc*100)
			}
		}

		results.CommunityDemand = append(results.CommunityDemand, negotiation.FirstSlotTotalImport)
		results.H0SoC = append(results.H0SoC, d.homes[0].State.SoCE)
		results.StepLog = append(results.StepLog, StepRecord{
			Step:                  step,
			PeakDemand:            negotiation.FirstSlotTotalImport,
			NegotiationIterations: negotiation.Iterations,
			Warning:               negotiation.Warning,
		})

		d.mu.Lock()
		d.currentStep = step
		if negotiation.Warning != "" {
			d.lastWarning = negotiation.Warning
		}
		d.mu.Unlock()

		if negotiation.Warning != "" {
			d.logger.Printf("sim: step %d: %s", step, negotiation.Warning)
		}
	}

	return results, nil
}

// Close releases the driver's optional integrations.
func (d *Driver) Close() error {
	if d.inverter != nil {
		if err := d.inverter.Close(); err != nil {
			return err
		}
	}
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
