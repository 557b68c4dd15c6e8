package search

import (
	"sync"

	"github.com/golang/geo/r2"
	"github.com/samber/lo"
)

// Trail is the ordered list of search points the robot has relocated to. Each was reached
// safely from the one before, so retracing it is a known-clear path between the stack point and
// the current search point.
type Trail struct {
	mu     sync.Mutex
	points []r2.Point
}

// Append records a new search point.
func (t *Trail) Append(p r2.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = append(t.points, p)
}

// Len returns the number of points recorded.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.points)
}

// Outbound returns the points in the order they were visited, stack point side first.
func (t *Trail) Outbound() []r2.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]r2.Point(nil), t.points...)
}

// Inbound returns the points newest first, for heading back toward the stack point.
func (t *Trail) Inbound() []r2.Point {
	return lo.Reverse(t.Outbound())
}
