// Package source finds and decodes the images that make up a sheet.
//
// Directory inputs are enumerated with a glob pattern and sorted by file
// name so that repeated runs over the same directory produce the same
// sheet. Manifest inputs keep the order in which they are listed.
package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// extra decoders; png, jpeg and gif come in through imaging
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultPattern selects the files taken from a directory
const DefaultPattern = "*.png"

// DecodeError reports a source file that is not a readable raster
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// List returns the absolute paths of the regular files in dir matching
// pattern, sorted by file name. Paths listed in exclude are skipped so that
// a sheet written into its own input directory is not picked up again.
func List(dir, pattern string, exclude ...string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading input directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", absDir)
	}

	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	matches, err := filepath.Glob(filepath.Join(absDir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}

	paths := matches[:0]
	for _, m := range matches {
		if skip[m] {
			continue
		}
		fi, err := os.Stat(m)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", m)
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		paths = append(paths, m)
	}

	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	return paths, nil
}

// Decode reads a single image. name is only used in error messages.
func Decode(r io.Reader, name string) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	return img, nil
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	return Decode(f, path)
}

// Load decodes every path in order. The first failure aborts the batch;
// unreadable files are never skipped.
func Load(ctx context.Context, paths []string) ([]image.Image, error) {
	images := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := Open(p)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}
