package hems

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig() is invalid: %v", err)
	}
}

func TestDefaultConfigComputesHouseLimit(t *testing.T) {
	c := DefaultConfig()
	want := c.ImportMax / float64(c.NumHomes)
	if c.HouseLimit != want {
		t.Errorf("expected house_limit %v, got %v", want, c.HouseLimit)
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"zero delta", func(c *Config) { c.Delta = 0 }},
		{"negative battery capacity", func(c *Config) { c.BatteryCapacity = -1 }},
		{"zero cop", func(c *Config) { c.COP = 0 }},
		{"efficiency above one", func(c *Config) { c.BatteryEfficiency = 1.5 }},
		{"negative import max", func(c *Config) { c.ImportMax = -1 }},
		{"zero num homes", func(c *Config) { c.NumHomes = 0 }},
		{"zero house limit", func(c *Config) { c.HouseLimit = 0 }},
		{"zero penalty step", func(c *Config) { c.PenaltyStep = 0 }},
		{"zero max iters", func(c *Config) { c.MaxIters = 0 }},
		{"zero solver time limit", func(c *Config) { c.SolverTimeLimit = 0 }},
		{"zero steps", func(c *Config) { c.Steps = 0 }},
		{"empty output path", func(c *Config) { c.OutputPath = "" }},
		{"latitude out of range", func(c *Config) { c.Latitude = 120 }},
		{"longitude out of range", func(c *Config) { c.Longitude = -200 }},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }},
		{"health check port too high", func(c *Config) { c.HealthCheckPort = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected Validate() to reject %s", tt.name)
			}
		})
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultConfig()
	original.NumHomes = 7
	original.TransformerLimit = 8.5

	if err := original.SaveConfigToWriter(&buf); err != nil {
		t.Fatalf("SaveConfigToWriter() returned error: %v", err)
	}

	loaded, err := LoadConfigFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadConfigFromReader() returned error: %v", err)
	}
	if loaded.NumHomes != original.NumHomes {
		t.Errorf("expected NumHomes=%d, got %d", original.NumHomes, loaded.NumHomes)
	}
	if loaded.TransformerLimit != original.TransformerLimit {
		t.Errorf("expected TransformerLimit=%v, got %v", original.TransformerLimit, loaded.TransformerLimit)
	}
}

func TestLoadConfigFromReaderRejectsInvalidJSON(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("not json"))
	if err == nil {
		t.Fatal("expected LoadConfigFromReader to reject malformed JSON")
	}
}
