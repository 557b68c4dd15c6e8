// Package fake implements a simulated regulated motor whose shaft only advances when it is
// stepped, so a simulation can move every motor on one clock.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gridbot/gridbot/components/motor"
	"github.com/gridbot/gridbot/logging"
)

const defaultMaxSpeed = 900

type mode int

const (
	idle mode = iota
	rotating
	running
)

var _ motor.Motor = &Motor{}

// A Motor pretends to be a regulated motor. Acceleration is recorded but not simulated; the
// shaft moves at the set speed from the first step.
type Motor struct {
	name   string
	logger logging.Logger

	mu           sync.Mutex
	speed        float64
	acceleration float64
	maxSpeed     float64
	position     float64
	mode         mode
	direction    float64
	remaining    float64
	braked       bool
}

// NewMotor returns a stopped motor at position 0.
func NewMotor(name string, logger logging.Logger) *Motor {
	return &Motor{name: name, logger: logger, maxSpeed: defaultMaxSpeed}
}

// Name returns the motor name.
func (m *Motor) Name() string {
	return m.name
}

// SetSpeed sets the speed for later commands; the running command picks it up on the next step.
func (m *Motor) SetSpeed(ctx context.Context, degsPerSec float64) error {
	if degsPerSec < 0 {
		return motor.NewNegativeSpeedError(m.name, degsPerSec)
	}
	if warning, _ := motor.CheckSpeed(degsPerSec, m.maxSpeed); warning != "" {
		m.logger.CDebugf(ctx, "%s: %s", m.name, warning)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = math.Min(degsPerSec, m.maxSpeed)
	return nil
}

// SetAcceleration records the acceleration.
func (m *Motor) SetAcceleration(ctx context.Context, degsPerSec2 float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceleration = degsPerSec2
	return nil
}

// Acceleration returns the recorded acceleration.
func (m *Motor) Acceleration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceleration
}

// Rotate starts a relative rotation.
func (m *Motor) Rotate(ctx context.Context, degrees float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if degrees == 0 {
		m.mode = idle
		return nil
	}
	if _, err := motor.CheckSpeed(m.speed, m.maxSpeed); err != nil {
		return motor.NewMotorError(m.name, err)
	}
	m.mode = rotating
	m.direction = motor.GetSign(degrees)
	m.remaining = math.Abs(degrees)
	m.braked = false
	return nil
}

// Forward runs forward until stopped.
func (m *Motor) Forward(ctx context.Context) error {
	return m.run(1)
}

// Backward runs backward until stopped.
func (m *Motor) Backward(ctx context.Context) error {
	return m.run(-1)
}

func (m *Motor) run(direction float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := motor.CheckSpeed(m.speed, m.maxSpeed); err != nil {
		return motor.NewMotorError(m.name, err)
	}
	m.mode = running
	m.direction = direction
	m.braked = false
	return nil
}

// Stop ends the current command.
func (m *Motor) Stop(ctx context.Context, brake bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = idle
	m.remaining = 0
	m.braked = brake
	return nil
}

// Braked reports whether the last Stop held the shaft.
func (m *Motor) Braked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.braked
}

// IsMoving reports whether a command is in progress.
func (m *Motor) IsMoving(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode != idle, nil
}

// Position returns the tachometer count in degrees.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, nil
}

// Speed returns the set speed.
func (m *Motor) Speed(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed, nil
}

// Step advances the shaft by dt at the set speed and returns the signed rotation applied. A
// relative rotation never overshoots its target and ends the command when reached.
func (m *Motor) Step(dt time.Duration) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == idle {
		return 0
	}
	delta := m.speed * dt.Seconds()
	if m.mode == rotating {
		if delta >= m.remaining {
			delta = m.remaining
			m.mode = idle
		}
		m.remaining -= delta
	}
	delta *= m.direction
	m.position += delta
	return delta
}
