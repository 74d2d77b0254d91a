// Package telemetry is an optional, narrow Modbus read path for
// cross-checking a simulated home's battery SoC against a real
// inverter, adapted from a full Sigenergy plant-control client down
// to the one register block the simulation driver actually consumes.
package telemetry

import (
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// essSOCRegister is the input register holding the hybrid inverter's
// ESS state-of-charge, in tenths of a percent (section 5.3 of the
// vendor's register map).
const essSOCRegister = 30578 + 46/2 // offset 46 bytes into the 30578 block, 2 bytes/register

// Inverter is a read-only handle to one Modbus TCP inverter. It is
// opt-in: the simulation driver only constructs one when a config
// supplies a non-empty address, and every read failure is logged and
// ignored rather than propagated into the MILP loop.
type Inverter struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// Dial opens a Modbus TCP connection to address (host:port).
func Dial(address string, slaveID byte, timeout time.Duration) (*Inverter, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = timeout

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("telemetry: failed to connect to inverter at %s: %w", address, err)
	}

	return &Inverter{
		handler: handler,
		client:  modbus.NewClient(handler),
	}, nil
}

// Close releases the underlying connection.
func (inv *Inverter) Close() error {
	if inv.handler == nil {
		return nil
	}
	return inv.handler.Close()
}

// ReadBatterySOC reads the inverter's reported battery state of charge
// as a fraction in [0, 1], for comparison against a home's simulated
// soc_e/battery_capacity.
func (inv *Inverter) ReadBatterySOC() (float64, error) {
	data, err := inv.client.ReadInputRegisters(essSOCRegister, 1)
	if err != nil {
		return 0, fmt.Errorf("telemetry: failed to read battery SOC: %w", err)
	}
	tenthsPercent := uint16(data[0])<<8 | uint16(data[1])
	return float64(tenthsPercent) / 1000.0, nil
}
