package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/kiesman99/gridsheet/pkg/grid"
)

// Manifest lists sheet inputs explicitly, in placement order.
//
//	output = "matrix.png"
//	images = ["lima.png", "cities/bogota.png"]
//
//	[layout]
//	frame_width = 2560
//	per_row = 9
//	padding = 2
//
// Relative paths resolve against the directory holding the manifest.
type Manifest struct {
	Output string       `toml:"output"`
	Images []string     `toml:"images"`
	Layout ManifestGrid `toml:"layout"`

	path string
}

// ManifestGrid overrides layout parameters; unset keys keep the caller's value.
type ManifestGrid struct {
	FrameWidth *int  `toml:"frame_width"`
	PerRow     *int  `toml:"per_row"`
	Padding    *int  `toml:"padding"`
	Strict     *bool `toml:"strict"`
}

// LoadManifest reads and validates a TOML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("manifest %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if len(m.Images) == 0 {
		return nil, errors.Wrapf(grid.ErrEmptyInput, "manifest %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	m.path = abs
	return &m, nil
}

// Dir is the directory relative entries resolve against.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.path)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.Dir(), p)
}

// Paths returns the absolute image paths in manifest order.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Images))
	for i, p := range m.Images {
		paths[i] = m.resolve(p)
	}
	return paths
}

// OutputPath returns the resolved output path, or "" when unset.
func (m *Manifest) OutputPath() string {
	if m.Output == "" {
		return ""
	}
	return m.resolve(m.Output)
}

// Apply overlays the manifest's layout table on p.
func (m *Manifest) Apply(p grid.Params) grid.Params {
	if m.Layout.FrameWidth != nil {
		p.FrameWidth = *m.Layout.FrameWidth
	}
	if m.Layout.PerRow != nil {
		p.PerRow = *m.Layout.PerRow
	}
	if m.Layout.Padding != nil {
		p.Padding = *m.Layout.Padding
	}
	if m.Layout.Strict != nil {
		p.RequireUniform = *m.Layout.Strict
	}
	return p
}
