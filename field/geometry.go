package field

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Dimensions describes the physical grid.
type Dimensions struct {
	// TileWidth is the side of one grid square in centimeters.
	TileWidth float64 `json:"tile_width"`
	// MapDimension is the number of tiles along each side of the field, walls included.
	MapDimension int `json:"map_dimension"`
}

// DefaultDimensions is a 12 by 12 field of one-foot tiles.
func DefaultDimensions() Dimensions {
	return Dimensions{TileWidth: 30.48, MapDimension: 12}
}

// Validate ensures the grid is usable.
func (d Dimensions) Validate(path string) error {
	if d.TileWidth <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "tile_width")
	}
	if d.MapDimension < 4 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("map_dimension must be at least 4, got %d", d.MapDimension))
	}
	return nil
}

// HalfTile is half a tile width.
func (d Dimensions) HalfTile() float64 {
	return d.TileWidth / 2
}

// Role is which job this robot has in the run.
type Role int

// The two roles.
const (
	Builder Role = iota
	Collector
)

func (r Role) String() string {
	if r == Builder {
		return "builder"
	}
	return "collector"
}

// Geometry is everything derived from the handshake before the robot moves. Zones never change;
// SearchPoint is only the initial value and is owned by robot.State once the run starts.
type Geometry struct {
	Dimensions     Dimensions
	Role           Role
	StartingCorner int

	// BuilderZone is where this robot stacks.
	BuilderZone Zone
	// CollectorZone is the other team's zone grown by a tile on every side.
	CollectorZone Zone
	// Interior is the playable field with a half-tile band along the walls removed.
	Interior  Zone
	MapCenter r2.Point

	SearchPoint r2.Point
	StackPoint  r2.Point
	// CorrectionAnchor is where drift correction starts, inside the tile next to CorrectionCorner.
	CorrectionAnchor r2.Point
	// CorrectionCorner is the grid-line intersection drift correction measures against.
	CorrectionCorner r2.Point
}

// NewGeometry derives the field geometry for the given team.
func NewGeometry(h *Handshake, teamNumber int, dims Dimensions) (*Geometry, error) {
	if h == nil {
		return nil, errors.New("no handshake received")
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := dims.Validate("field"); err != nil {
		return nil, err
	}

	tile := dims.TileWidth
	half := dims.HalfTile()
	g := &Geometry{Dimensions: dims}

	green, red := h.GreenZone(tile), h.RedZone(tile)
	if h.BuilderTeam == teamNumber {
		g.Role = Builder
		g.StartingCorner = h.BuilderStartCorner
		g.BuilderZone, g.CollectorZone = green, red
	} else {
		g.Role = Collector
		g.StartingCorner = h.CollectorStartCorner
		g.BuilderZone, g.CollectorZone = red, green
	}
	g.CollectorZone = g.CollectorZone.Inflate(tile)

	c := (float64(dims.MapDimension)/2 - 1) * tile
	g.MapCenter = r2.Point{X: c, Y: c}
	g.Interior = NewZone(r2.Point{X: half, Y: half},
		float64(dims.MapDimension-3)*tile, float64(dims.MapDimension-3)*tile)

	// the search point is one tile in from the builder zone corner nearest the map center
	lo, hi := g.BuilderZone.Min(), g.BuilderZone.Max()
	inset := half + tile
	center := g.BuilderZone.Center()
	if center.X < g.MapCenter.X {
		g.SearchPoint.X = lo.X + inset
	} else {
		g.SearchPoint.X = hi.X - inset
	}
	if center.Y < g.MapCenter.Y {
		g.SearchPoint.Y = lo.Y + inset
	} else {
		g.SearchPoint.Y = hi.Y - inset
	}

	g.StackPoint = g.SearchPoint
	quarter := tile / 4
	g.CorrectionAnchor = g.SearchPoint.Sub(r2.Point{X: 1.5 * quarter, Y: 1.5 * quarter})
	g.CorrectionCorner = g.SearchPoint.Add(r2.Point{X: half, Y: half})
	return g, nil
}

// Corners of the builder zone, numbered counter-clockwise from the bottom left. The number picks
// the direction a blocked search point is relocated in.
const (
	BottomLeft  = 1
	BottomRight = 2
	TopRight    = 3
	TopLeft     = 4
)

// Sector is the arc of polar headings, in degrees, scanned from a search point.
type Sector struct {
	StartDeg float64
	EndDeg   float64
	Corner   int
}

// Contains reports whether the polar heading deg lies in the sector.
func (s Sector) Contains(deg float64) bool {
	start := math.Mod(s.StartDeg, 360)
	d := math.Mod(math.Mod(deg-start, 360)+360, 360)
	return d <= s.Width()
}

// Width returns the angular size of the sector.
func (s Sector) Width() float64 {
	w := math.Mod(s.EndDeg-s.StartDeg, 360)
	if w < 0 {
		w += 360
	}
	return w
}

func (s Sector) String() string {
	return fmt.Sprintf("%.0f°-%.0f° (corner %d)", s.StartDeg, s.EndDeg, s.Corner)
}

// SectorFor returns the sector that faces the open field from a search point, given which
// quadrant of the map it is in.
func SectorFor(searchPoint, mapCenter r2.Point) Sector {
	left, bottom := searchPoint.X < mapCenter.X, searchPoint.Y < mapCenter.Y
	switch {
	case left && bottom:
		return Sector{StartDeg: 5, EndDeg: 90, Corner: BottomLeft}
	case left:
		return Sector{StartDeg: 270, EndDeg: 355, Corner: TopLeft}
	case bottom:
		return Sector{StartDeg: 90, EndDeg: 180, Corner: BottomRight}
	default:
		return Sector{StartDeg: 180, EndDeg: 270, Corner: TopRight}
	}
}
