// Package telemetry records and shows what the robot believes while it runs. Sinks only read;
// nothing here changes the robot's state.
package telemetry

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/gridbot/gridbot/spatialmath"
)

// Entry is one sample of the robot's state.
type Entry struct {
	Time         time.Time
	Pose         spatialmath.Snapshot
	Phase        string
	TowerHeight  int
	Localizing   bool
	Searching    bool
	Avoiding     bool
	HoldingBlock bool
}

// Flags lists the state flags that are set, comma separated.
func (e Entry) Flags() string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{e.Localizing, "localizing"},
		{e.Searching, "searching"},
		{e.Avoiding, "avoiding"},
		{e.HoldingBlock, "holding"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	return strings.Join(flags, ",")
}

// A Provider samples the robot's state.
type Provider interface {
	Entry() Entry
}

// ProviderFunc is a function that is a Provider.
type ProviderFunc func() Entry

// Entry calls f.
func (f ProviderFunc) Entry() Entry {
	return f()
}

// Config selects and paces the telemetry sinks.
type Config struct {
	// Dir is where CSV logs are written. No CSV log is kept when it is empty.
	Dir         string `json:"dir"`
	CSVPeriodMs int    `json:"csv_period_ms"`

	Display         bool `json:"display"`
	DisplayPeriodMs int  `json:"display_period_ms"`
}

// DefaultConfig logs every 50ms and refreshes the display every 250ms when they are enabled.
func DefaultConfig() Config {
	return Config{CSVPeriodMs: 50, DisplayPeriodMs: 250}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.CSVPeriodMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "csv_period_ms")
	}
	if cfg.DisplayPeriodMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "display_period_ms")
	}
	if strings.ContainsRune(cfg.Dir, 0) {
		return utils.NewConfigValidationError(path, errors.New("dir must be a file system path"))
	}
	return nil
}

// CSVPeriod is the CSV logging period.
func (cfg Config) CSVPeriod() time.Duration {
	return time.Duration(cfg.CSVPeriodMs) * time.Millisecond
}

// DisplayPeriod is the display refresh period.
func (cfg Config) DisplayPeriod() time.Duration {
	return time.Duration(cfg.DisplayPeriodMs) * time.Millisecond
}
