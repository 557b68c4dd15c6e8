package robotimpl

import (
	"io"

	"github.com/benbjohnson/clock"

	"github.com/gridbot/gridbot/robot"
)

// options configures a LocalRobot.
type options struct {
	clk clock.Clock
	// displayOut receives the live display when the config enables it.
	displayOut io.Writer
	signaler   robot.Signaler
}

// Option configures how we set up the robot.
// Cribbed from https://github.com/grpc/grpc-go/blob/aff571cc86e6e7e740130dbbb32a9741558db805/dialoptions.go#L41
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithClock returns an Option which sets the clock the periodic tasks run on.
func WithClock(clk clock.Clock) Option {
	return newFuncOption(func(o *options) {
		o.clk = clk
	})
}

// WithDisplayWriter returns an Option which sets where the live display is drawn.
func WithDisplayWriter(w io.Writer) Option {
	return newFuncOption(func(o *options) {
		o.displayOut = w
	})
}

// WithSignaler returns an Option which replaces the logging signaler.
func WithSignaler(s robot.Signaler) Option {
	return newFuncOption(func(o *options) {
		o.signaler = s
	})
}
