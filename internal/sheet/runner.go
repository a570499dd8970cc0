// Package sheet runs the batch pipeline behind the gridsheet command:
// find inputs, decode them, compose the grid and save the result.
package sheet

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/kiesman99/gridsheet/internal/compose"
	"github.com/kiesman99/gridsheet/internal/sink"
	"github.com/kiesman99/gridsheet/internal/source"
	"github.com/kiesman99/gridsheet/pkg/grid"
)

// DefaultOutput is the sheet file name written into the input directory
const DefaultOutput = "matrix.png"

// ErrConflictingInputs is returned when both a manifest and an input
// directory are given.
var ErrConflictingInputs = errors.New("manifest and input directory are mutually exclusive")

// Options contains all configuration for a sheet run
type Options struct {
	InputDir string // directory scanned when Manifest is empty
	Pattern  string // glob applied inside InputDir
	Manifest string // TOML manifest listing inputs explicitly
	Output   string // output path, defaults to InputDir/matrix.png
	Format   string // encoder name, derived from Output when empty
	Quality  int    // JPEG quality
	DryRun   bool   // compute the layout without writing anything
	Params   grid.Params
}

// Result describes a finished run
type Result struct {
	Inputs []string
	Output string
	Layout *grid.Layout
}

// Runner handles the sheet pipeline
type Runner struct {
	opts   *Options
	logger *log.Logger
}

// New creates a runner. A nil logger falls back to log.Default().
func New(opts *Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{opts: opts, logger: logger}
}

// Run composes the sheet and writes it to the output path.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	paths, output, params, err := r.resolve()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(compose.ErrEmptyInput, "no files matching %q in %s", r.pattern(), r.opts.InputDir)
	}

	format, err := r.format(output)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Composing sheet", "images", len(paths), "frame_width", params.FrameWidth,
		"per_row", params.PerRow, "padding", params.Padding)

	images, err := source.Load(ctx, paths)
	if err != nil {
		return nil, err
	}

	c := compose.New(compose.Options{Logger: r.logger})
	canvas, layout, err := c.Compose(images, params)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Layout", "scale", layout.ScaleFactor, "cell", layout.CellSize(),
		"rows", layout.Rows, "size", layout.Bounds().Size())

	result := &Result{Inputs: paths, Output: output, Layout: layout}
	if r.opts.DryRun {
		r.logger.Info("Dry run, nothing written", "size", layout.Bounds().Size())
		return result, nil
	}

	if err := sink.Save(output, canvas, format, r.opts.Quality); err != nil {
		return nil, err
	}

	r.logger.Infof("Wrote %s %dx%d (%s)", output, layout.FrameWidth, layout.FrameHeight,
		time.Since(start).Round(time.Millisecond))
	return result, nil
}

// resolve picks inputs, output path and parameters from either the
// manifest or the input directory.
func (r *Runner) resolve() ([]string, string, grid.Params, error) {
	params := r.opts.Params

	if r.opts.Manifest != "" && r.opts.InputDir != "" {
		return nil, "", params, ErrConflictingInputs
	}

	if r.opts.Manifest != "" {
		m, err := source.LoadManifest(r.opts.Manifest)
		if err != nil {
			return nil, "", params, err
		}
		params = m.Apply(params)

		output := r.opts.Output
		if output == "" {
			output = m.OutputPath()
		}
		if output == "" {
			output = filepath.Join(m.Dir(), DefaultOutput)
		}
		output, err = filepath.Abs(output)
		if err != nil {
			return nil, "", params, errors.Wrap(err, "resolving output path")
		}
		return m.Paths(), output, params, nil
	}

	dir := r.opts.InputDir
	if dir == "" {
		dir = "."
	}
	output := r.opts.Output
	if output == "" {
		output = filepath.Join(dir, DefaultOutput)
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return nil, "", params, errors.Wrap(err, "resolving output path")
	}

	paths, err := source.List(dir, r.pattern(), output)
	if err != nil {
		return nil, "", params, err
	}
	return paths, output, params, nil
}

func (r *Runner) pattern() string {
	if r.opts.Pattern == "" {
		return source.DefaultPattern
	}
	return r.opts.Pattern
}

func (r *Runner) format(output string) (imaging.Format, error) {
	if r.opts.Format != "" {
		return sink.ParseFormat(r.opts.Format)
	}
	return sink.FormatFromPath(output)
}
