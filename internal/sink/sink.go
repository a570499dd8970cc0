// Package sink encodes finished sheets.
package sink

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultQuality is the JPEG quality used when none is given
const DefaultQuality = 80

// ParseFormat maps a format name such as "png" or "jpeg" to an encoder.
func ParseFormat(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(strings.TrimPrefix(strings.ToLower(name), "."))
	if err != nil {
		return 0, errors.Errorf("unknown format: %s", name)
	}
	return f, nil
}

// FormatFromPath picks the encoder from the file extension.
func FormatFromPath(path string) (imaging.Format, error) {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return 0, errors.Errorf("unknown output format for %s", path)
	}
	return f, nil
}

// ContentType is the MIME type of an encoded sheet
func ContentType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// Encode writes img to w. PNG output uses the best compression level;
// quality applies to JPEG only.
func Encode(w io.Writer, img image.Image, f imaging.Format, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return imaging.Encode(w, img, f,
		imaging.JPEGQuality(quality),
		imaging.PNGCompressionLevel(png.BestCompression),
	)
}

// SaveError reports a failure writing the final sheet
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Save encodes img into path. The sheet is written to a temporary file next
// to path and renamed into place, so a failed run leaves no partial output.
func Save(path string, img image.Image, f imaging.Format, quality int) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &SaveError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, img, f, quality); err != nil {
		return &SaveError{Path: path, Err: errors.Wrap(err, "encoding")}
	}
	if err = tmp.Close(); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	return nil
}
