// Package imagefilter decides whether an embedded image is exam content
// (diagram, photo, chart) or decoration (logo, watermark, rule line).
package imagefilter

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/local/examparser/internal/config"
)

// MaxColorSamples caps unique-color counting. Images with more colors than
// this always pass the color check.
const MaxColorSamples = 10000

// Record is an embedded image with its document-wide repetition count.
type Record struct {
	Xref        int
	Data        []byte
	Width       int
	Height      int
	Ext         string
	Occurrences int
}

// Reason names the first check an image failed.
type Reason string

const (
	Passed           Reason = ""
	Repeated         Reason = "repeated"
	TooSmallBytes    Reason = "too_small_bytes"
	TooSmallPixels   Reason = "too_small_pixels"
	BadAspect        Reason = "bad_aspect"
	FewColors        Reason = "few_colors"
	TransparentIndex Reason = "transparent_palette"
)

// Filter applies the configured thresholds.
type Filter struct {
	cfg config.ImageFilterConfig
}

// New returns a filter for cfg.
func New(cfg config.ImageFilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Config returns the thresholds in use.
func (f *Filter) Config() config.ImageFilterConfig { return f.cfg }

// Passes reports whether rec is content. When it is not, the reason is the
// first failed check in order: repetition, byte size, pixel size, aspect
// ratio, color count, transparent palette.
func (f *Filter) Passes(rec Record) (bool, Reason) {
	if rec.Occurrences > f.cfg.MaxRepetitions {
		return false, Repeated
	}
	if len(rec.Data) < f.cfg.MinSizeBytes {
		return false, TooSmallBytes
	}
	if rec.Width < f.cfg.MinWidth || rec.Height < f.cfg.MinHeight {
		return false, TooSmallPixels
	}
	if rec.Height <= 0 {
		return false, BadAspect
	}
	aspect := float64(rec.Width) / float64(rec.Height)
	if aspect < f.cfg.MinAspect || aspect > f.cfg.MaxAspect {
		return false, BadAspect
	}

	img, _, err := image.Decode(bytes.NewReader(rec.Data))
	if err != nil {
		// Undecodable formats (JBIG2, JPX) skip the pixel checks.
		return true, Passed
	}
	if n, ok := UniqueColors(img, MaxColorSamples); ok && n < f.cfg.MinUniqueColors {
		return false, FewColors
	}
	if PalettedWithTransparency(img) {
		return false, TransparentIndex
	}
	return true, Passed
}

// UniqueColors counts distinct RGBA colors in img; palette entries that
// share a color count once. ok is false once the count exceeds limit, in
// which case n is meaningless.
func UniqueColors(img image.Image, limit int) (n int, ok bool) {
	seen := make(map[[4]uint32]struct{})
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			seen[[4]uint32{r, g, bl, a}] = struct{}{}
			if len(seen) > limit {
				return 0, false
			}
		}
	}
	return len(seen), true
}

// PalettedWithTransparency reports an indexed-color image whose palette has
// a non-opaque entry.
func PalettedWithTransparency(img image.Image) bool {
	p, ok := img.(*image.Paletted)
	if !ok {
		return false
	}
	for _, c := range p.Palette {
		if _, _, _, a := c.RGBA(); a < 0xffff {
			return true
		}
	}
	return false
}
