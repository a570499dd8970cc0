package grid

import "image"

// Defaults used when a caller leaves a parameter unset.
const (
	DefaultFrameWidth = 2560
	DefaultPerRow     = 9
	DefaultPadding    = 2

	// DefaultMaxPixels caps the canvas area, about 400MB of NRGBA.
	DefaultMaxPixels = 10000 * 10000
)

// Params contains the caller supplied layout configuration
type Params struct {
	FrameWidth int // width of the output canvas in pixels
	PerRow     int // images placed on each row
	Padding    int // horizontal gap between neighbouring images

	// RequireUniform rejects sources whose size differs from the first
	// image instead of scaling them with the first image's factor.
	RequireUniform bool

	// MaxPixels caps FrameWidth*FrameHeight; zero means DefaultMaxPixels.
	MaxPixels int
}

// DefaultParams returns the stock contact sheet layout
func DefaultParams() Params {
	return Params{
		FrameWidth: DefaultFrameWidth,
		PerRow:     DefaultPerRow,
		Padding:    DefaultPadding,
	}
}

// Layout is the derived geometry of a sheet
type Layout struct {
	Count       int         // number of placed images
	PerRow      int         // images per row
	Padding     int         // horizontal gap
	Source      image.Point // size of the first source image
	ScaleFactor float64
	CellWidth   int
	CellHeight  int
	Rows        int
	FrameWidth  int
	FrameHeight int
}

// Cell is the placement of a single image on the canvas
type Cell struct {
	Index  int
	Row    int
	Col    int
	Origin image.Point
}
