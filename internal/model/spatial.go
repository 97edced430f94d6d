package model

import (
	"github.com/dhconnelly/rtreego"
)

// minExtent keeps degenerate boxes (points, axis-aligned lines) indexable
const minExtent = 1e-9

// WaySpatial represents a stored way with its spatial information for R-tree indexing
type WaySpatial struct {
	ConversionID string
	Way          *WayRecord
}

// Bounds implements the rtreego.Spatial interface
func (w *WaySpatial) Bounds() rtreego.Rect {
	b := w.Way.Bound()
	return BoundsRect(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// BoundsRect builds an R-tree rectangle from lon/lat corners
func BoundsRect(minX, minY, maxX, maxY float64) rtreego.Rect {
	width := max(maxX-minX, minExtent)
	height := max(maxY-minY, minExtent)

	rect, _ := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{width, height})
	return rect
}
