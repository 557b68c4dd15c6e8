package inject

import (
	"context"

	"github.com/gridbot/gridbot/robot"
)

// Signaler is an injected signaler.
type Signaler struct {
	robot.Signaler
	SignalFunc func(ctx context.Context, s robot.Signal)
}

// NewSignaler returns a new injected signaler.
func NewSignaler() *Signaler {
	return &Signaler{}
}

// Signal calls the injected Signal or the real version.
func (s *Signaler) Signal(ctx context.Context, sig robot.Signal) {
	if s.SignalFunc == nil {
		s.Signaler.Signal(ctx, sig)
		return
	}
	s.SignalFunc(ctx, sig)
}
