package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/kiesman99/gridsheet/pkg/grid"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	black = color.NRGBA{A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func solid(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func TestCompose_Example(t *testing.T) {
	images := []image.Image{
		solid(100, 100, red),
		solid(100, 100, green),
		solid(100, 100, blue),
		solid(100, 100, black),
	}

	canvas, layout, err := New(Options{}).Compose(images, grid.Params{FrameWidth: 210, PerRow: 2, Padding: 10})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if canvas.Bounds() != image.Rect(0, 0, 210, 200) {
		t.Fatalf("Expected 210x200 canvas, got %v", canvas.Bounds())
	}
	if layout.Rows != 2 || layout.ScaleFactor != 1.0 {
		t.Errorf("Unexpected layout %+v", layout)
	}

	checks := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, red},
		{99, 99, red},
		{110, 0, green},
		{209, 99, green},
		{0, 100, blue},
		{99, 199, blue},
		{110, 100, black},
		{209, 199, black},
		{105, 50, white}, // padding column
		{105, 150, white},
	}
	for _, c := range checks {
		if got := canvas.NRGBAAt(c.x, c.y); got != c.want {
			t.Errorf("Pixel (%d,%d): expected %v, got %v", c.x, c.y, c.want, got)
		}
	}
}

func TestCompose_EmptyInput(t *testing.T) {
	_, err := Compose(nil, grid.DefaultParams())
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestCompose_InvalidLayout(t *testing.T) {
	_, err := Compose([]image.Image{solid(10, 10, red)}, grid.Params{FrameWidth: 10, PerRow: 9, Padding: 2})
	var layoutErr *grid.LayoutError
	if !errors.As(err, &layoutErr) {
		t.Errorf("Expected LayoutError, got %v", err)
	}
}

func TestCompose_OversizedFrameIsRejected(t *testing.T) {
	testCases := []struct {
		name string
		p    grid.Params
	}{
		{"frame beyond int32", grid.Params{FrameWidth: 1 << 40, PerRow: 1}},
		{"area beyond limit", grid.Params{FrameWidth: 200000, PerRow: 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compose([]image.Image{solid(10, 10, red)}, tc.p)
			var layoutErr *grid.LayoutError
			if !errors.As(err, &layoutErr) {
				t.Errorf("Expected LayoutError, got %v", err)
			}
		})
	}
}

func TestCompose_Idempotent(t *testing.T) {
	images := make([]image.Image, 0, 11)
	for i := 0; i < 11; i++ {
		images = append(images, solid(64, 48, color.NRGBA{R: uint8(i * 20), G: uint8(255 - i*20), B: 0x80, A: 0xff}))
	}
	p := grid.Params{FrameWidth: 300, PerRow: 4, Padding: 2}

	first, err := Compose(images, p)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	second, err := Compose(images, p)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if first.Bounds() != second.Bounds() || !bytes.Equal(first.Pix, second.Pix) {
		t.Error("Expected pixel identical canvases")
	}
}

func TestCompose_SingleImage(t *testing.T) {
	canvas, layout, err := New(Options{}).Compose([]image.Image{solid(40, 20, blue)}, grid.Params{FrameWidth: 20, PerRow: 1})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if layout.Rows != 1 {
		t.Errorf("Expected 1 row, got %d", layout.Rows)
	}
	if canvas.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Errorf("Expected 20x10 canvas, got %v", canvas.Bounds())
	}
	if got := canvas.NRGBAAt(0, 0); got != blue {
		t.Errorf("Expected blue at origin, got %v", got)
	}
}

func TestCompose_NeverUpscales(t *testing.T) {
	canvas, layout, err := New(Options{}).Compose([]image.Image{solid(10, 10, red), solid(10, 10, red)}, grid.Params{FrameWidth: 100, PerRow: 2})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if layout.CellWidth != 50 {
		t.Fatalf("Expected 50px cells, got %d", layout.CellWidth)
	}

	if got := canvas.NRGBAAt(5, 5); got != red {
		t.Errorf("Expected red inside the thumbnail, got %v", got)
	}
	if got := canvas.NRGBAAt(20, 20); got != white {
		t.Errorf("Expected background outside the thumbnail, got %v", got)
	}
	if got := canvas.NRGBAAt(55, 5); got != red {
		t.Errorf("Expected second image at x=50, got %v", got)
	}
}

func TestCompose_PreservesAspect(t *testing.T) {
	images := []image.Image{solid(100, 100, green), solid(100, 50, red)}
	canvas, _, err := New(Options{}).Compose(images, grid.Params{FrameWidth: 200, PerRow: 2})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if got := canvas.NRGBAAt(150, 25); got != red {
		t.Errorf("Expected red in the upper half of the second cell, got %v", got)
	}
	if got := canvas.NRGBAAt(150, 75); got != white {
		t.Errorf("Expected background below the wide image, got %v", got)
	}
}

func TestCompose_RequireUniform(t *testing.T) {
	images := []image.Image{solid(100, 100, green), solid(100, 50, red)}
	p := grid.Params{FrameWidth: 200, PerRow: 2, RequireUniform: true}

	_, err := Compose(images, p)
	var layoutErr *grid.LayoutError
	if !errors.As(err, &layoutErr) {
		t.Fatalf("Expected LayoutError, got %v", err)
	}
	if layoutErr.Field != "source_size" {
		t.Errorf("Expected source_size field, got %s", layoutErr.Field)
	}
}

func TestCompose_AlphaOverBackground(t *testing.T) {
	images := []image.Image{
		solid(10, 10, color.NRGBA{}),
		solid(10, 10, color.NRGBA{R: 0xff, A: 0x80}),
	}
	canvas, err := Compose(images, grid.Params{FrameWidth: 20, PerRow: 2})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if got := canvas.NRGBAAt(5, 5); got != white {
		t.Errorf("Expected transparent image to leave background, got %v", got)
	}

	got := canvas.NRGBAAt(15, 5)
	if got.A != 0xff || got.R != 0xff {
		t.Errorf("Expected opaque red channel, got %v", got)
	}
	if got.G == 0 || got.G == 0xff {
		t.Errorf("Expected blended green channel, got %v", got)
	}
}

func TestCompose_CustomBackground(t *testing.T) {
	canvas, _, err := New(Options{Background: black}).Compose([]image.Image{solid(10, 5, red)}, grid.Params{FrameWidth: 20, PerRow: 2})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if got := canvas.NRGBAAt(15, 2); got != black {
		t.Errorf("Expected black background, got %v", got)
	}
}
