// Package field models the playing field: the tile grid, the two colored zones and the points
// derived from them that the robot scans from, stacks at and corrects its drift on.
package field

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Zone is an immutable axis-aligned rectangle on the field, in centimeters.
type Zone struct {
	rect r2.Rect
}

// NewZone returns the zone with lower-left corner min and the given size.
func NewZone(min r2.Point, width, height float64) Zone {
	return Zone{rect: r2.RectFromPoints(min, min.Add(r2.Point{X: width, Y: height}))}
}

// ZoneFromCells returns the zone spanning the grid cells from lower to upper, scaled by tile.
func ZoneFromCells(lowerX, lowerY, upperX, upperY int, tile float64) Zone {
	return NewZone(
		r2.Point{X: float64(lowerX) * tile, Y: float64(lowerY) * tile},
		float64(upperX-lowerX)*tile,
		float64(upperY-lowerY)*tile,
	)
}

// Contains reports whether p lies strictly inside the zone. Points on the boundary are outside.
func (z Zone) Contains(p r2.Point) bool {
	return z.rect.InteriorContainsPoint(p)
}

// Inflate returns a zone grown by margin on every side.
func (z Zone) Inflate(margin float64) Zone {
	return Zone{rect: z.rect.ExpandedByMargin(margin)}
}

// Center returns the center of the zone.
func (z Zone) Center() r2.Point {
	return z.rect.Center()
}

// Min returns the lower-left corner.
func (z Zone) Min() r2.Point {
	return z.rect.Lo()
}

// Max returns the upper-right corner.
func (z Zone) Max() r2.Point {
	return z.rect.Hi()
}

// Size returns the width and height of the zone as a point.
func (z Zone) Size() r2.Point {
	return z.rect.Size()
}

func (z Zone) String() string {
	lo, hi := z.Min(), z.Max()
	return fmt.Sprintf("[(%.2f, %.2f), (%.2f, %.2f)]", lo.X, lo.Y, hi.X, hi.Y)
}
