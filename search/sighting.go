package search

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/spatialmath"
)

// Sighting is what a range reading taken while scanning was classified as.
type Sighting int

const (
	// SightingZone is inside one of the colored zones. Blocks there are not ours to take.
	SightingZone Sighting = iota
	// SightingCandidate is in the open field and worth driving to.
	SightingCandidate
	// SightingWall is too close to the field border to be a block.
	SightingWall
)

func (s Sighting) String() string {
	switch s {
	case SightingZone:
		return "zone"
	case SightingCandidate:
		return "candidate"
	case SightingWall:
		return "wall"
	}
	return "unknown"
}

// ClassifySighting places a point seen by the range finder.
func ClassifySighting(p r2.Point, g *field.Geometry) Sighting {
	switch {
	case g.BuilderZone.Contains(p) || g.CollectorZone.Contains(p):
		return SightingZone
	case g.Interior.Contains(p):
		return SightingCandidate
	default:
		return SightingWall
	}
}

// ProjectSighting returns the point distance ahead of pose.
func ProjectSighting(pose spatialmath.Snapshot, distance float64) r2.Point {
	return pose.Project(distance)
}

// AngularDrift is the unsigned angle, in degrees, between two polar headings in degrees.
func AngularDrift(a, b float64) float64 {
	return math.Abs(spatialmath.ShortestDegrees(a, b))
}

// Relocate returns the next search point after a sweep from point found nothing. Which way it
// moves depends on corner, the corner of the builder zone the search point is in. The first
// choice is one tile diagonally into the field; when the diagonal is blocked the point slides two
// tiles along one zone edge, or one tile along the other when that edge is blocked too.
func Relocate(corner int, point r2.Point, tile float64, diagonalBlocked, startBlocked bool) (r2.Point, error) {
	// diagonal, then the start-edge slide, then the fallback slide, in tiles
	moves := map[int][3]r2.Point{
		field.BottomLeft:  {{X: 1, Y: 1}, {X: 2, Y: 0}, {X: 0, Y: 1}},
		field.BottomRight: {{X: -1, Y: 1}, {X: 0, Y: 2}, {X: -1, Y: 0}},
		field.TopRight:    {{X: -1, Y: -1}, {X: -2, Y: 0}, {X: 0, Y: -1}},
		field.TopLeft:     {{X: 1, Y: -1}, {X: 0, Y: -2}, {X: 1, Y: 0}},
	}
	m, ok := moves[corner]
	if !ok {
		return point, errors.Errorf("builder zone corner must be between 1 and 4, got %d", corner)
	}
	step := m[0]
	switch {
	case diagonalBlocked && startBlocked:
		step = m[2]
	case diagonalBlocked:
		step = m[1]
	}
	return point.Add(step.Mul(tile)), nil
}

// TowerPreset holds the lift motions for placing one block.
type TowerPreset struct {
	// LiftDeg raises the block after grabbing it, UnliftDeg lowers it onto the tower.
	LiftDeg   float64 `json:"lift_deg"`
	UnliftDeg float64 `json:"unlift_deg"`
	// StackTurnDeg is the turn from the sector start heading that lines the block up with the
	// tower.
	StackTurnDeg float64 `json:"stack_turn_deg"`
}

// DefaultTowerPresets returns the presets for each tower height, lowest first.
func DefaultTowerPresets() []TowerPreset {
	return []TowerPreset{
		{LiftDeg: -450, UnliftDeg: 450, StackTurnDeg: 43},
		{LiftDeg: -900, UnliftDeg: 100, StackTurnDeg: 41},
		{LiftDeg: -1800, UnliftDeg: 100, StackTurnDeg: 39},
		{LiftDeg: -2600, UnliftDeg: 100, StackTurnDeg: 37},
	}
}

// PresetFor returns the preset for placing a block on a tower of height blocks.
func PresetFor(presets []TowerPreset, height int) (TowerPreset, error) {
	if height < 0 || height >= len(presets) {
		return TowerPreset{}, errors.Errorf("no tower preset for height %d", height)
	}
	return presets[height], nil
}
