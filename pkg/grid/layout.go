// Package grid computes contact sheet geometry: the uniform scale factor
// that fits a fixed number of images per row into a frame, the resulting
// cell size and canvas height, and the placement of every image.
//
// The arithmetic follows the classic matrix layout:
//
//	scale  = (frameWidth - (perRow-1)*padding) / (perRow * srcWidth)
//	cell   = ceil(src * scale)
//	rows   = ceil(count / perRow)
//	height = ceil(scale * srcHeight * rows)
//
// Image n lands on row n/perRow, column n%perRow, at
// (col*(cellWidth+padding), row*cellHeight).
package grid

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrEmptyInput is returned when a sheet is requested for zero images.
var ErrEmptyInput = errors.New("no images to compose")

// LayoutError reports degenerate sheet geometry
type LayoutError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid layout: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Validate checks the caller supplied parameters on their own.
func (p Params) Validate() error {
	if p.FrameWidth <= 0 {
		return &LayoutError{Field: "frame_width", Value: p.FrameWidth, Reason: "must be positive"}
	}
	if p.FrameWidth > p.maxPixels() {
		return &LayoutError{Field: "frame_width", Value: p.FrameWidth,
			Reason: fmt.Sprintf("exceeds the %d pixel limit", p.maxPixels())}
	}
	if p.PerRow < 1 {
		return &LayoutError{Field: "per_row", Value: p.PerRow, Reason: "must be at least 1"}
	}
	if p.PerRow > p.FrameWidth {
		return &LayoutError{Field: "per_row", Value: p.PerRow,
			Reason: fmt.Sprintf("more images per row than pixels in a %dpx frame", p.FrameWidth)}
	}
	if p.Padding < 0 {
		return &LayoutError{Field: "padding", Value: p.Padding, Reason: "must not be negative"}
	}
	if p.MaxPixels < 0 {
		return &LayoutError{Field: "max_pixels", Value: p.MaxPixels, Reason: "must not be negative"}
	}
	return nil
}

func (p Params) maxPixels() int {
	if p.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return p.MaxPixels
}

// ScaleFactor returns the uniform factor that fits p.PerRow images of
// width srcWidth, separated by p.Padding, into p.FrameWidth.
// Computed in float64 so large operands cannot wrap.
func ScaleFactor(srcWidth int, p Params) float64 {
	avail := float64(p.FrameWidth) - float64(p.PerRow-1)*float64(p.Padding)
	return avail / (float64(p.PerRow) * float64(srcWidth))
}

// Plan derives the layout for count images whose size is src.
func Plan(count int, src image.Point, p Params) (*Layout, error) {
	if count <= 0 {
		return nil, ErrEmptyInput
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if src.X <= 0 || src.Y <= 0 {
		return nil, &LayoutError{Field: "source_size", Value: src, Reason: "source image has no area"}
	}

	sf := ScaleFactor(src.X, p)
	if sf <= 0 || math.IsNaN(sf) || math.IsInf(sf, 0) {
		return nil, &LayoutError{
			Field: "scale_factor",
			Value: sf,
			Reason: fmt.Sprintf("%d gaps of %dpx leave no room for images in a %dpx frame",
				p.PerRow-1, p.Padding, p.FrameWidth),
		}
	}

	// PerRow <= FrameWidth <= maxPixels, so none of these can wrap
	rows := (count + p.PerRow - 1) / p.PerRow
	frameHf := math.Ceil(sf * float64(src.Y) * float64(rows))
	if frameHf*float64(p.FrameWidth) > float64(p.maxPixels()) {
		return nil, &LayoutError{
			Field:  "frame_size",
			Value:  fmt.Sprintf("%dx%.0f", p.FrameWidth, frameHf),
			Reason: fmt.Sprintf("exceeds the %d pixel limit", p.maxPixels()),
		}
	}

	// cells are never larger than the frame, which fits in an int
	cellW := int(math.Ceil(float64(src.X) * sf))
	cellH := int(math.Ceil(float64(src.Y) * sf))
	frameH := int(frameHf)

	if cellW <= 0 || cellH <= 0 {
		return nil, &LayoutError{Field: "cell_size", Value: image.Pt(cellW, cellH), Reason: "must be positive"}
	}
	if frameH <= 0 {
		return nil, &LayoutError{Field: "frame_height", Value: frameH, Reason: "must be positive"}
	}

	return &Layout{
		Count:       count,
		PerRow:      p.PerRow,
		Padding:     p.Padding,
		Source:      src,
		ScaleFactor: sf,
		CellWidth:   cellW,
		CellHeight:  cellH,
		Rows:        rows,
		FrameWidth:  p.FrameWidth,
		FrameHeight: frameH,
	}, nil
}

// Bounds is the canvas rectangle
func (l *Layout) Bounds() image.Rectangle {
	return image.Rect(0, 0, l.FrameWidth, l.FrameHeight)
}

// CellSize is the bounding box every image is shrunk to fit
func (l *Layout) CellSize() image.Point {
	return image.Pt(l.CellWidth, l.CellHeight)
}

// Cell returns the placement of the image at linear index n.
func (l *Layout) Cell(n int) Cell {
	row := n / l.PerRow
	col := n % l.PerRow
	return Cell{
		Index:  n,
		Row:    row,
		Col:    col,
		Origin: image.Pt(col*(l.CellWidth+l.Padding), row*l.CellHeight),
	}
}

// Cells returns every placement in input order.
func (l *Layout) Cells() []Cell {
	cells := make([]Cell, l.Count)
	for n := range cells {
		cells[n] = l.Cell(n)
	}
	return cells
}
