// Package hems is the module root: it holds the Config that the sim
// driver and the cmd/hems-sim entry point build a run from.
package hems

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Config is the full set of tunable parameters for a simulation run:
// physical constants shared by every home's MILP, community negotiation
// knobs, logging/health settings, and the optional integrations
// (inverter telemetry, Postgres persistence, live websocket server).
type Config struct {
	// Physical constants, one set shared by all homes (spec defaults
	// in comments).
	Delta            float64 `json:"delta"`              // 0.5, hours per slot
	BatteryCapacity   float64 `json:"battery_capacity"`   // C_E, 10.0 kWh
	ThermalCapacity   float64 `json:"thermal_capacity"`   // C_TH, 20.0 kWh
	COP               float64 `json:"cop"`                // 3.0
	ChargeRateMax     float64 `json:"charge_rate_max"`    // G_E, 10 kW
	DischargeRateMax  float64 `json:"discharge_rate_max"` // D_E, 10 kW
	BatteryEfficiency float64 `json:"battery_efficiency"` // nu_E, 0.95
	ThermalEfficiency float64 `json:"thermal_efficiency"` // nu_TH, 0.098 (carried per catalog, unused by the thermal dynamics equation as specified)
	PVCapacity        float64 `json:"pv_capacity"`        // 5.1 kW, per home
	ImportMax         float64 `json:"import_max"`         // I_max, 5 kW per home
	WearCostElec      float64 `json:"wear_cost_elec"`     // 0.005
	WearCostTherm     float64 `json:"wear_cost_therm"`    // 0.001

	// Community negotiation.
	NumHomes          int     `json:"num_homes"`          // 5
	TransformerLimit  float64 `json:"transformer_limit"`  // kW, aggregate import ceiling
	HouseLimit        float64 `json:"house_limit"`        // kW, defaults to ImportMax/NumHomes
	PenaltyStep       float64 `json:"penalty_step"`       // 0.2
	MaxIters          int     `json:"max_iters"`           // 10

	// Solver.
	SolverTimeLimit time.Duration `json:"solver_time_limit"` // 10s

	// Simulation driver.
	Steps           int    `json:"steps"`            // 96
	OutputPath      string `json:"output_path"`       // simulation_results.json
	UseSunCalcSolar bool   `json:"use_sun_calc_solar"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`

	// Logging.
	LogLevel  string `json:"log_level"`  // debug, info, warn, error
	LogFormat string `json:"log_format"` // text, json

	// Optional integrations.
	HealthCheckPort    int           `json:"health_check_port"`    // 0 = disabled
	InverterModbusAddr string        `json:"inverter_modbus_addr"` // "" = disabled
	InverterTimeout    time.Duration `json:"inverter_timeout"`
	PostgresConnString string        `json:"postgres_conn_string"` // "" = disabled
}

// DefaultConfig returns a reasonable starting parameter set: a
// half-hourly five-home community behind a 5kW transformer link, each
// home with a 10kWh battery, 20kWh thermal store, and 5.1kW of solar.
func DefaultConfig() *Config {
	c := &Config{
		Delta:             0.5,
		BatteryCapacity:   10.0,
		ThermalCapacity:   20.0,
		COP:               3.0,
		ChargeRateMax:     10.0,
		DischargeRateMax:  10.0,
		BatteryEfficiency: 0.95,
		ThermalEfficiency: 0.098,
		PVCapacity:        5.1,
		ImportMax:         5.0,
		WearCostElec:      0.005,
		WearCostTherm:     0.001,

		NumHomes:         5,
		TransformerLimit: 5.0,
		PenaltyStep:      0.2,
		MaxIters:         10,

		SolverTimeLimit: 10 * time.Second,

		Steps:      96,
		OutputPath: "simulation_results.json",
		Latitude:   51.5072, // London, a reasonable default for sun-position solar
		Longitude:  -0.1276,

		LogLevel:  "info",
		LogFormat: "text",

		HealthCheckPort: 0,
		InverterTimeout: 5 * time.Second,
	}
	c.HouseLimit = c.ImportMax / float64(c.NumHomes)
	return c
}

// LoadConfig loads configuration from a JSON file, applying DefaultConfig
// first so a partial file only overrides what it sets.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file.
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer.
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Validate checks the configuration for malformed physical parameters
// a solver could never produce a sane schedule from. These are fatal
// startup errors, caught before any home or planner is constructed.
func (c *Config) Validate() error {
	if c.Delta <= 0 {
		return fmt.Errorf("delta must be greater than 0, got: %v", c.Delta)
	}
	if c.BatteryCapacity <= 0 {
		return fmt.Errorf("battery_capacity must be greater than 0, got: %v", c.BatteryCapacity)
	}
	if c.ThermalCapacity <= 0 {
		return fmt.Errorf("thermal_capacity must be greater than 0, got: %v", c.ThermalCapacity)
	}
	if c.COP <= 0 {
		return fmt.Errorf("cop must be greater than 0, got: %v", c.COP)
	}
	if c.ChargeRateMax < 0 || c.DischargeRateMax < 0 {
		return fmt.Errorf("charge_rate_max/discharge_rate_max must be non-negative")
	}
	if c.BatteryEfficiency <= 0 || c.BatteryEfficiency > 1 {
		return fmt.Errorf("battery_efficiency must be in (0, 1], got: %v", c.BatteryEfficiency)
	}
	if c.ImportMax < 0 {
		return fmt.Errorf("import_max must be non-negative, got: %v", c.ImportMax)
	}
	if c.NumHomes <= 0 {
		return fmt.Errorf("num_homes must be greater than 0, got: %d", c.NumHomes)
	}
	if c.HouseLimit <= 0 {
		return fmt.Errorf("house_limit must be greater than 0, got: %v", c.HouseLimit)
	}
	if c.PenaltyStep <= 0 {
		return fmt.Errorf("penalty_step must be greater than 0, got: %v", c.PenaltyStep)
	}
	if c.MaxIters <= 0 {
		return fmt.Errorf("max_iters must be greater than 0, got: %d", c.MaxIters)
	}
	if c.SolverTimeLimit <= 0 {
		return fmt.Errorf("solver_time_limit must be greater than 0, got: %s", c.SolverTimeLimit)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got: %d", c.Steps)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path cannot be empty")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %v", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %v", c.Longitude)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s, must be one of: text, json", c.LogFormat)
	}
	if c.HealthCheckPort < 0 || c.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port must be between 0 and 65535, got: %d", c.HealthCheckPort)
	}

	return nil
}
