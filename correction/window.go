// Package correction re-anchors the pose estimate on the floor grid. The robot spins in place
// near a grid intersection while a downward light sensor watches for lines; the headings at
// which the four crossings happen pin down the position and heading.
package correction

import (
	"gonum.org/v1/gonum/floats"

	"github.com/gridbot/gridbot/spatialmath"
)

// Sample is one change in light intensity and the heading it was seen at.
type Sample struct {
	Delta   float64
	Heading float64
}

// SampleWindow is a fixed-capacity FIFO of samples. Pushing onto a full window drops the oldest
// sample.
type SampleWindow struct {
	capacity int
	samples  []Sample
}

// NewSampleWindow returns an empty window holding up to capacity samples.
func NewSampleWindow(capacity int) *SampleWindow {
	return &SampleWindow{capacity: capacity, samples: make([]Sample, 0, capacity+1)}
}

// Push appends s, evicting the oldest sample if the window is over capacity.
func (w *SampleWindow) Push(s Sample) {
	w.samples = append(w.samples, s)
	if len(w.samples) > w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.capacity]
	}
}

// Len returns the number of samples held.
func (w *SampleWindow) Len() int {
	return len(w.samples)
}

// Full reports whether the window holds capacity samples.
func (w *SampleWindow) Full() bool {
	return len(w.samples) == w.capacity
}

// Clear empties the window.
func (w *SampleWindow) Clear() {
	w.samples = w.samples[:0]
}

// Samples returns a copy of the samples, oldest first.
func (w *SampleWindow) Samples() []Sample {
	return append([]Sample(nil), w.samples...)
}

// Extremes returns the samples with the largest and smallest delta. The earliest one wins a tie.
// The window must not be empty.
func (w *SampleWindow) Extremes() (hi, lo Sample) {
	deltas := make([]float64, len(w.samples))
	for i, s := range w.samples {
		deltas[i] = s.Delta
	}
	return w.samples[floats.MaxIdx(deltas)], w.samples[floats.MinIdx(deltas)]
}

// LineDetector turns a stream of light readings into line crossings. A dark line shows up as a
// sharp drop in intensity followed by a sharp recovery. Deltas are previous minus current, so
// the drop is a large positive delta and the recovery a large negative one.
type LineDetector struct {
	window *SampleWindow
	rise   float64
	fall   float64
	last   float64
	primed bool
}

// intensityScale turns a [0, 1] reflectance into the units the thresholds are tuned in.
const intensityScale = 1000

// NewLineDetector returns a detector over a window of size samples. A crossing needs a delta of
// at least rise and one of at most fall inside a full window.
func NewLineDetector(size int, rise, fall float64) *LineDetector {
	return &LineDetector{window: NewSampleWindow(size), rise: rise, fall: fall}
}

// Add feeds one reading taken at heading (polar radians). When it completes a crossing, Add
// returns the heading midway between the rise and the fall and clears the window so the same
// line is not counted twice.
func (d *LineDetector) Add(intensity, heading float64) (float64, bool) {
	current := intensity * intensityScale
	if !d.primed {
		d.last = current
		d.primed = true
	}
	d.window.Push(Sample{Delta: d.last - current, Heading: heading})
	d.last = current

	if !d.window.Full() {
		return 0, false
	}
	hi, lo := d.window.Extremes()
	if hi.Delta < d.rise || lo.Delta > d.fall {
		return 0, false
	}
	d.window.Clear()
	return spatialmath.NormalizeRadians(hi.Heading + spatialmath.ShortestRadians(hi.Heading, lo.Heading)/2), true
}

// Reset forgets every reading, including the previous intensity.
func (d *LineDetector) Reset() {
	d.window.Clear()
	d.primed = false
}
