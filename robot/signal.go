package robot

import (
	"context"

	"github.com/gridbot/gridbot/logging"
)

// A Signal is an event announced to the operator.
type Signal int

// The signals the robot emits.
const (
	SignalReady Signal = iota
	SignalLocalized
	SignalLineCrossed
	SignalCorrectionFailed
	SignalObstacle
	SignalBlockFound
	SignalMissionComplete
)

var signalNames = map[Signal]string{
	SignalReady:            "ready",
	SignalLocalized:        "localized",
	SignalLineCrossed:      "line crossed",
	SignalCorrectionFailed: "correction failed",
	SignalObstacle:         "obstacle",
	SignalBlockFound:       "block found",
	SignalMissionComplete:  "mission complete",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "unknown"
}

// A Signaler announces events, on hardware with a beep.
type Signaler interface {
	Signal(ctx context.Context, s Signal)
}

// LogSignaler announces signals through a logger.
type LogSignaler struct {
	logger logging.Logger
}

// NewLogSignaler returns a Signaler that logs at info level.
func NewLogSignaler(logger logging.Logger) *LogSignaler {
	return &LogSignaler{logger: logger}
}

// Signal logs s.
func (ls *LogSignaler) Signal(ctx context.Context, s Signal) {
	ls.logger.Infow("signal", "signal", s.String())
}
