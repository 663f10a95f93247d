// Package screenshot writes frames to PNG files.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"
)

// Scale returns src enlarged by an integer factor with nearest-neighbour
// sampling, keeping pixels sharp.
func Scale(src image.Image, factor int) *image.RGBA {
	if factor < 1 {
		factor = 1
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Encode writes src scaled by factor to w as PNG.
func Encode(w io.Writer, src image.Image, factor int) error {
	return png.Encode(w, Scale(src, factor))
}

// Save writes src scaled by factor to filename.
func Save(filename string, src image.Image, factor int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := Encode(f, src, factor); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Name returns a timestamped file name in dir for a screenshot of rom.
func Name(dir, rom string, t time.Time) string {
	base := filepath.Base(rom)
	base = base[:len(base)-len(filepath.Ext(base))]
	if base == "" || base == "." {
		base = "scootnes"
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.png", base, t.Format("20060102-150405")))
}
