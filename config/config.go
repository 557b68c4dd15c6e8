// Package config defines the robot's configuration file: the body, the field, and the tuning of
// every task and procedure. Every value has a default; a file only needs what differs.
package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/gridbot/gridbot/avoidance"
	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/correction"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/localization"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/search"
	"github.com/gridbot/gridbot/simulation"
	"github.com/gridbot/gridbot/telemetry"
)

// Odometry configures the position estimator.
type Odometry struct {
	PeriodMs int `json:"period_ms"`
}

// Validate ensures all parts of the config are valid.
func (o *Odometry) Validate(path string) error {
	if o.PeriodMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "period_ms")
	}
	return nil
}

// Logging configures where logs go.
type Logging struct {
	Level logging.Level `json:"level"`
	// File, if set, receives a copy of every log line and is rotated by size.
	File     string                        `json:"file,omitempty"`
	Patterns []logging.LoggerPatternConfig `json:"patterns,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (l *Logging) Validate(path string) error {
	for i, p := range l.Patterns {
		if err := p.Validate(); err != nil {
			return utils.NewConfigValidationError(path, errors.Wrapf(err, "pattern %d", i))
		}
	}
	return nil
}

// Config is the whole robot configuration.
type Config struct {
	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`

	TeamNumber int `json:"team_number"`
	// Handshake is the handshake file. A relative path is relative to the config file.
	Handshake string `json:"handshake"`

	Logging Logging `json:"logging"`

	Body        robot.Body          `json:"body"`
	Field       field.Dimensions    `json:"field"`
	RangeFilter sensor.FilterConfig `json:"range_filter"`
	Simulation  simulation.Config   `json:"simulation"`

	Odometry     Odometry            `json:"odometry"`
	Navigation   navigation.Config   `json:"navigation"`
	Localization localization.Config `json:"localization"`
	Correction   correction.Config   `json:"correction"`
	Avoidance    avoidance.Config    `json:"avoidance"`
	Search       search.Config       `json:"search"`
	Telemetry    telemetry.Config    `json:"telemetry"`
}

// Default returns the configuration of the competition robot.
func Default() *Config {
	return &Config{
		Logging:      Logging{Level: logging.INFO},
		Body:         robot.DefaultBody(),
		Field:        field.DefaultDimensions(),
		RangeFilter:  sensor.DefaultFilterConfig(),
		Simulation:   simulation.DefaultConfig(),
		Odometry:     Odometry{PeriodMs: 25},
		Navigation:   navigation.DefaultConfig(),
		Localization: localization.DefaultConfig(),
		Correction:   correction.DefaultConfig(),
		Avoidance:    avoidance.DefaultConfig(),
		Search:       search.DefaultConfig(),
		Telemetry:    telemetry.DefaultConfig(),
	}
}

// Validate checks every section and reports all problems found.
func (c *Config) Validate() error {
	var err error
	if c.TeamNumber <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError("", "team_number"))
	}
	if c.Handshake == "" {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError("", "handshake"))
	}
	return multierr.Combine(
		err,
		c.Logging.Validate("logging"),
		c.Body.Validate("body"),
		c.Field.Validate("field"),
		c.RangeFilter.Validate("range_filter"),
		c.Simulation.Validate("simulation"),
		c.Odometry.Validate("odometry"),
		c.Navigation.Validate("navigation"),
		c.Localization.Validate("localization"),
		c.Correction.Validate("correction"),
		c.Avoidance.Validate("avoidance"),
		c.Search.Validate("search"),
		c.Telemetry.Validate("telemetry"),
	)
}

// HandshakePath resolves the handshake file against the config file's directory.
func (c *Config) HandshakePath() string {
	if c.Handshake == "" || filepath.IsAbs(c.Handshake) || c.ConfigFilePath == "" {
		return c.Handshake
	}
	return filepath.Join(filepath.Dir(c.ConfigFilePath), c.Handshake)
}

// Geometry reads the handshake and derives the field geometry for this team.
func (c *Config) Geometry() (*field.Geometry, error) {
	h, err := field.ReadHandshakeFile(c.HandshakePath())
	if err != nil {
		return nil, err
	}
	return field.NewGeometry(h, c.TeamNumber, c.Field)
}
