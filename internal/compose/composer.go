// Package compose tiles images of uniform size into a single contact sheet.
package compose

import (
	"fmt"
	"image"
	"image/color"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/kiesman99/gridsheet/pkg/grid"
)

// ErrEmptyInput is returned by Compose when no images are supplied.
var ErrEmptyInput = grid.ErrEmptyInput

// Background is the sheet fill colour: opaque white.
var Background color.Color = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Options tune how images are drawn
type Options struct {
	Background color.Color
	Filter     *imaging.ResampleFilter
	Logger     *log.Logger // optional, receives one debug line per placement
}

// Composer lays out images on a canvas
type Composer struct {
	opts Options
}

// New creates a composer. Zero fields of opts fall back to an opaque white
// background and Lanczos resampling.
func New(opts Options) *Composer {
	if opts.Background == nil {
		opts.Background = Background
	}
	if opts.Filter == nil {
		opts.Filter = &imaging.Lanczos
	}
	return &Composer{opts: opts}
}

// Compose tiles images with the default composer.
func Compose(images []image.Image, p grid.Params) (*image.NRGBA, error) {
	canvas, _, err := New(Options{}).Compose(images, p)
	return canvas, err
}

// Compose places images left to right, top to bottom, in the order given.
//
// The scale factor is derived from the first image only. Every image is
// shrunk to fit the resulting cell, never enlarged, so the placed size may
// be smaller than the cell on one axis. Unless p.RequireUniform is set,
// images of a different size are still placed with the first image's cell.
func (c *Composer) Compose(images []image.Image, p grid.Params) (*image.NRGBA, *grid.Layout, error) {
	if len(images) == 0 {
		return nil, nil, ErrEmptyInput
	}

	src := images[0].Bounds().Size()
	layout, err := grid.Plan(len(images), src, p)
	if err != nil {
		return nil, nil, err
	}

	if p.RequireUniform {
		for n, img := range images[1:] {
			if size := img.Bounds().Size(); size != src {
				return nil, nil, &grid.LayoutError{
					Field:  "source_size",
					Value:  size,
					Reason: fmt.Sprintf("image %d differs from first image %v", n+1, src),
				}
			}
		}
	}

	canvas := imaging.New(layout.FrameWidth, layout.FrameHeight, c.opts.Background)

	for n, img := range images {
		cell := layout.Cell(n)
		thumb := imaging.Fit(img, layout.CellWidth, layout.CellHeight, *c.opts.Filter)
		r := thumb.Bounds().Add(cell.Origin)
		draw.Draw(canvas, r, thumb, thumb.Bounds().Min, draw.Over)

		if c.opts.Logger != nil {
			c.opts.Logger.Debug("placed image", "index", n, "row", cell.Row, "col", cell.Col,
				"x", cell.Origin.X, "y", cell.Origin.Y, "size", thumb.Bounds().Size())
		}
	}

	return canvas, layout, nil
}
