// Package geo provides the bounding box value type that geolocates a patch.
// A BBox is an immutable value: an axis-aligned extent plus the coordinate
// reference system the coordinates are expressed in.
package geo

import (
	"errors"
	"fmt"
)

// BBox validation errors.
var (
	ErrEmptyCRS      = errors.New("crs must not be empty")
	ErrInvalidExtent = errors.New("invalid extent")
)

// BBox is a geolocated bounding extent with a coordinate reference system.
type BBox struct {
	minX, minY, maxX, maxY float64
	crs                    string
}

// New creates a BBox from the lower-left and upper-right corners and a CRS
// identifier such as "EPSG:32633".
// Returns ErrInvalidExtent if the corners are not ordered, ErrEmptyCRS if
// the CRS is empty.
func New(minX, minY, maxX, maxY float64, crs string) (*BBox, error) {
	if crs == "" {
		return nil, ErrEmptyCRS
	}
	if minX > maxX || minY > maxY {
		return nil, fmt.Errorf("%w: (%v, %v, %v, %v)", ErrInvalidExtent, minX, minY, maxX, maxY)
	}
	return &BBox{minX: minX, minY: minY, maxX: maxX, maxY: maxY, crs: crs}, nil
}

// Extent returns the (minX, minY, maxX, maxY) corners.
func (b *BBox) Extent() (minX, minY, maxX, maxY float64) {
	return b.minX, b.minY, b.maxX, b.maxY
}

// CRS returns the coordinate reference system identifier.
func (b *BBox) CRS() string { return b.crs }

// Equal reports whether two boxes have the same extent and CRS.
// A nil box only equals another nil box.
func (b *BBox) Equal(other *BBox) bool {
	if b == nil || other == nil {
		return b == other
	}
	return *b == *other
}

func (b *BBox) String() string {
	return fmt.Sprintf("BBox(%v, %v, %v, %v, crs=%s)", b.minX, b.minY, b.maxX, b.maxY, b.crs)
}
