// Command hems-sim runs a rolling-horizon home-energy-management
// simulation and writes its results to a JSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	hems "github.com/wmarritt/hems"
	"github.com/wmarritt/hems/sim"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Configuration file path (optional, defaults applied if absent)")
		steps         = flag.Int("steps", 0, "Number of simulation steps to run (0 = use config default)")
		outputPath    = flag.String("output", "", "Results output path (empty = use config default)")
		telemetryAddr = flag.String("telemetry-addr", "", "Modbus TCP address of a real inverter to poll alongside the simulation")
		healthPort    = flag.Int("health-port", 0, "Port to serve /api/health, /api/ready and /api/ws on (0 = disabled)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[hems-sim] ", log.LstdFlags)

	config := hems.DefaultConfig()
	if *configFile != "" {
		loaded, err := hems.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		config = loaded
	}

	if *steps > 0 {
		config.Steps = *steps
	}
	if *outputPath != "" {
		config.OutputPath = *outputPath
	}
	if *telemetryAddr != "" {
		config.InverterModbusAddr = *telemetryAddr
	}
	if *healthPort > 0 {
		config.HealthCheckPort = *healthPort
	}

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	driver, err := sim.NewDriver(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building simulation driver: %v\n", err)
		os.Exit(1)
	}
	defer driver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Printf("shutdown signal received, stopping simulation...")
		cancel()
	}()

	logger.Printf("starting simulation: %d homes, %d steps, transformer limit %.2f kW", config.NumHomes, config.Steps, config.TransformerLimit)

	results, err := driver.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Simulation error: %v\n", err)
		if results != nil {
			if saveErr := sim.SaveResults(config.OutputPath, results); saveErr != nil {
				logger.Printf("failed to save partial results: %v", saveErr)
			}
		}
		os.Exit(1)
	}

	if err := sim.SaveResults(config.OutputPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving results: %v\n", err)
		os.Exit(1)
	}

	logger.Printf("simulation complete, results written to %s", config.OutputPath)
}
