package spatialmath

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r2"

	"github.com/gridbot/gridbot/utils"
)

// Snapshot is a consistent copy of a Pose taken under its lock.
type Snapshot struct {
	X       float64
	Y       float64
	Heading float64 // polar radians in [0, 2π)
}

// Point returns the position part of the snapshot.
func (s Snapshot) Point() r2.Point {
	return r2.Point{X: s.X, Y: s.Y}
}

// Project returns the point distance units ahead of the snapshot along its heading.
func (s Snapshot) Project(distance float64) r2.Point {
	return r2.Point{X: s.X + distance*math.Cos(s.Heading), Y: s.Y + distance*math.Sin(s.Heading)}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("(%.2f, %.2f) @ %.1f°", s.X, s.Y, FromRadians(s.Heading, PolarDegrees))
}

// Pose is a 2D position plus heading that is safe for concurrent use. The position is stored
// as Cartesian (x, y) and the heading as polar radians in [0, 2π); every other representation is
// computed on read and converted back on write.
type Pose struct {
	mu      sync.RWMutex
	x, y    float64
	heading float64
}

// NewPose returns a pose at (x, y) with the given polar heading in radians.
func NewPose(x, y, heading float64) *Pose {
	return &Pose{x: x, y: y, heading: NormalizeRadians(heading)}
}

// NewPoseFrom returns a pose whose position is (c1, c2) in cs and whose heading is expressed in
// headingCS.
func NewPoseFrom(cs CoordinateSystem, c1, c2, heading float64, headingCS CoordinateSystem) *Pose {
	x, y := toCartesian(cs, c1, c2)
	return NewPose(x, y, ToRadians(heading, headingCS))
}

func toCartesian(cs CoordinateSystem, c1, c2 float64) (float64, float64) {
	if cs == Cartesian {
		return c1, c2
	}
	theta := ToRadians(c2, cs)
	return c1 * math.Cos(theta), c1 * math.Sin(theta)
}

func fromCartesian(cs CoordinateSystem, x, y float64) (float64, float64) {
	if cs == Cartesian {
		return x, y
	}
	return math.Hypot(x, y), FromRadians(math.Atan2(y, x), cs)
}

// X returns the x coordinate.
func (p *Pose) X() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.x
}

// Y returns the y coordinate.
func (p *Pose) Y() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.y
}

// R returns the distance from the origin.
func (p *Pose) R() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return math.Hypot(p.x, p.y)
}

// Theta returns the polar angle of the position in cs. The origin has angle 0.
func (p *Pose) Theta(cs CoordinateSystem) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return FromRadians(math.Atan2(p.y, p.x), cs)
}

// Coordinates returns the position in cs: (x, y) for Cartesian and (r, θ) otherwise.
func (p *Pose) Coordinates(cs CoordinateSystem) (float64, float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fromCartesian(cs, p.x, p.y)
}

// Heading returns the heading in cs.
func (p *Pose) Heading(cs CoordinateSystem) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return FromRadians(p.heading, cs)
}

// Point returns the position.
func (p *Pose) Point() r2.Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return r2.Point{X: p.x, Y: p.y}
}

// Snapshot returns x, y and heading read together.
func (p *Pose) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{X: p.x, Y: p.y, Heading: p.heading}
}

// SetX sets the x coordinate.
func (p *Pose) SetX(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x = x
}

// SetY sets the y coordinate.
func (p *Pose) SetY(y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.y = y
}

// SetR moves the position along its current polar angle so it lies r from the origin.
func (p *Pose) SetR(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	theta := math.Atan2(p.y, p.x)
	p.x, p.y = r*math.Cos(theta), r*math.Sin(theta)
}

// SetTheta rotates the position about the origin to the polar angle theta, given in cs.
func (p *Pose) SetTheta(theta float64, cs CoordinateSystem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := math.Hypot(p.x, p.y)
	sin, cos := math.Sincos(ToRadians(theta, cs))
	p.x, p.y = r*cos, r*sin
}

// SetCoordinates sets the position from (c1, c2) in cs.
func (p *Pose) SetCoordinates(cs CoordinateSystem, c1, c2 float64) {
	x, y := toCartesian(cs, c1, c2)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x, p.y = x, y
}

// SetHeading sets the absolute heading, given in cs.
func (p *Pose) SetHeading(heading float64, cs CoordinateSystem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heading = ToRadians(heading, cs)
}

// Set overwrites position and heading (polar radians) in one step.
func (p *Pose) Set(x, y, heading float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x, p.y, p.heading = x, y, NormalizeRadians(heading)
}

// Update replaces position and heading (polar radians) with what f returns for the current
// values. Readers never see a partial update.
func (p *Pose) Update(f func(x, y, heading float64) (float64, float64, float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	x, y, heading := f(p.x, p.y, p.heading)
	p.x, p.y, p.heading = x, y, NormalizeRadians(heading)
}

// IncrementX adds dx to the x coordinate.
func (p *Pose) IncrementX(dx float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x += dx
}

// IncrementY adds dy to the y coordinate.
func (p *Pose) IncrementY(dy float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.y += dy
}

// IncrementR moves the position radially by dr.
func (p *Pose) IncrementR(dr float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	theta := math.Atan2(p.y, p.x)
	r := math.Hypot(p.x, p.y) + dr
	p.x, p.y = r*math.Cos(theta), r*math.Sin(theta)
}

// IncrementTheta rotates the position about the origin by a relative angle given in cs.
func (p *Pose) IncrementTheta(dtheta float64, cs CoordinateSystem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rot := RotationToRadians(dtheta, cs)
	sin, cos := math.Sincos(rot)
	p.x, p.y = p.x*cos-p.y*sin, p.x*sin+p.y*cos
}

// IncrementHeading rotates the heading by a relative angle given in cs.
func (p *Pose) IncrementHeading(dheading float64, cs CoordinateSystem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heading = NormalizeRadians(p.heading + RotationToRadians(dheading, cs))
}

// Increment applies a position and heading change (polar radians) in one step.
func (p *Pose) Increment(dx, dy, dheading float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x += dx
	p.y += dy
	p.heading = NormalizeRadians(p.heading + dheading)
}

// Integrate advances the pose by displacement along the heading held before this call, then
// turns it by dheading. This is a single Euler step of differential-drive dead reckoning.
func (p *Pose) Integrate(displacement, dheading float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sin, cos := math.Sincos(p.heading)
	p.x += displacement * cos
	p.y += displacement * sin
	p.heading = NormalizeRadians(p.heading + dheading)
}

// DistanceTo returns the straight-line distance to target.
func (p *Pose) DistanceTo(target r2.Point) float64 {
	return p.Point().Sub(target).Norm()
}

// BearingTo returns the absolute direction from the pose to target in cs. The bearing to the
// pose's own position is 0.
func (p *Pose) BearingTo(target r2.Point, cs CoordinateSystem) float64 {
	d := target.Sub(p.Point())
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return FromRadians(math.Atan2(d.Y, d.X), cs)
}

// AngleTo returns the signed shortest rotation, in cs, that points the heading at target. The
// angle to the pose's own position is 0.
func (p *Pose) AngleTo(target r2.Point, cs CoordinateSystem) float64 {
	s := p.Snapshot()
	d := target.Sub(s.Point())
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return shortestIn(cs, s.Heading, math.Atan2(d.Y, d.X))
}

// DirectionTo returns the signed shortest rotation, in cs, that brings the heading to the
// absolute angle given in cs.
func (p *Pose) DirectionTo(angle float64, cs CoordinateSystem) float64 {
	return shortestIn(cs, p.Heading(Cartesian), ToRadians(angle, cs))
}

// shortestIn converts the shortest rotation between two polar headings into the units and sense
// of cs. A half turn is +π in every system, including the clockwise-positive compass.
func shortestIn(cs CoordinateSystem, from, to float64) float64 {
	d := ShortestRadians(from, to)
	switch cs {
	case PolarDegrees:
		return utils.RadToDeg(d)
	case CompassDegrees:
		if d == math.Pi {
			return 180
		}
		return -utils.RadToDeg(d)
	case Cartesian, PolarRadians:
	}
	return d
}

func (p *Pose) String() string {
	return p.Snapshot().String()
}
