package source

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/kiesman99/gridsheet/pkg/grid"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := imaging.Save(imaging.New(w, h, color.White), path); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestList_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.png", "b.png", "matrix.png"} {
		writeImage(t, filepath.Join(dir, name), 4, 4)
	}
	writeImage(t, filepath.Join(dir, "skip.jpg"), 4, 4)
	if err := os.Mkdir(filepath.Join(dir, "dir.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := List(dir, "", filepath.Join(dir, "matrix.png"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"a.png", "b.png", "c.png"}
	if len(paths) != len(want) {
		t.Fatalf("Expected %d paths, got %v", len(want), paths)
	}
	for i, p := range paths {
		if !filepath.IsAbs(p) {
			t.Errorf("Expected absolute path, got %s", p)
		}
		if filepath.Base(p) != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], filepath.Base(p))
		}
	}
}

func TestList_Pattern(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "block-1.png"), 4, 4)
	writeImage(t, filepath.Join(dir, "city-1.png"), 4, 4)

	paths, err := List(dir, "block*.png")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "block-1.png" {
		t.Errorf("Unexpected paths %v", paths)
	}

	if _, err := List(dir, "["); err == nil {
		t.Error("Expected error for malformed pattern")
	}
}

func TestList_MissingDirectory(t *testing.T) {
	if _, err := List(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.jpg")
	writeImage(t, a, 8, 6)
	writeImage(t, b, 3, 2)

	images, err := Load(context.Background(), []string{b, a})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(images))
	}
	if images[0].Bounds().Dx() != 3 || images[1].Bounds().Dx() != 8 {
		t.Errorf("Images not returned in input order")
	}
}

func TestLoad_DecodeErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	bad := filepath.Join(dir, "b.png")
	writeImage(t, good, 4, 4)
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), []string{good, bad})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if decodeErr.Path != bad {
		t.Errorf("Expected path %s, got %s", bad, decodeErr.Path)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, []string{"unused.png"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.toml")
	content := `
output = "out/matrix.png"
images = ["z.png", "/abs/a.png", "sub/m.png"]

[layout]
per_row = 3
padding = 0
strict = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	paths := m.Paths()
	want := []string{filepath.Join(dir, "z.png"), "/abs/a.png", filepath.Join(dir, "sub", "m.png")}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}

	if m.OutputPath() != filepath.Join(dir, "out", "matrix.png") {
		t.Errorf("Unexpected output path %s", m.OutputPath())
	}

	p := m.Apply(grid.DefaultParams())
	if p.FrameWidth != grid.DefaultFrameWidth {
		t.Errorf("Expected frame width to be kept, got %d", p.FrameWidth)
	}
	if p.PerRow != 3 || p.Padding != 0 || !p.RequireUniform {
		t.Errorf("Manifest layout not applied: %+v", p)
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"empty images", `images = []`},
		{"unknown key", "images = [\"a.png\"]\ncolumns = 4"},
		{"bad toml", `images = [`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sheet.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadManifest(path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadManifest_EmptyIsEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.toml")
	if err := os.WriteFile(path, []byte(`images = []`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadManifest(path)
	if !errors.Is(err, grid.ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}
