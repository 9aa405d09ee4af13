// Package composite stamps a dates header onto the top band of a menu
// template image.
package composite

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// DefaultProportion is the share of the template height covered by the header band.
	DefaultProportion = 0.20
	// LegacyProportion is the band size older templates were designed for.
	LegacyProportion = 0.12
)

// Geometry describes how a header is fitted into a template band.
type Geometry struct {
	// BandHeight is the height of the header band in the output.
	BandHeight int
	// SourceHeight is how many top rows of the header image are used.
	SourceHeight int
	// ScaledWidth is the width of the source band after resizing to BandHeight.
	ScaledWidth int
	// CropLeft is the number of columns dropped on the left when the scaled
	// band is wider than the template. Any odd extra column is dropped on the right.
	CropLeft int
	// OffsetX is where the scaled band is pasted on a white strip when it is
	// narrower than the template.
	OffsetX int
}

// Layout computes the band geometry for a header of size hw×hh merged into
// a template of size tw×th.
func Layout(hw, hh, tw, th int, proportion float64) (Geometry, error) {
	if err := ValidateProportion(proportion); err != nil {
		return Geometry{}, err
	}

	g := Geometry{
		BandHeight:   int(math.Floor(float64(th) * proportion)),
		SourceHeight: int(math.Floor(float64(hh) * proportion)),
	}
	if g.BandHeight <= 0 {
		return Geometry{}, &CompositingError{Step: "template_band", Reason: "template too short for header band"}
	}
	if g.SourceHeight <= 0 || hw <= 0 {
		return Geometry{}, &CompositingError{Step: "crop_header", Reason: "header band is empty"}
	}

	ratio := float64(hw) / float64(g.SourceHeight)
	g.ScaledWidth = int(math.Round(float64(g.BandHeight) * ratio))
	if g.ScaledWidth <= 0 {
		return Geometry{}, &CompositingError{Step: "resize", Reason: "scaled header width is not positive"}
	}

	if g.ScaledWidth > tw {
		g.CropLeft = (g.ScaledWidth - tw) / 2
	} else {
		g.OffsetX = (tw - g.ScaledWidth) / 2
	}
	return g, nil
}

// ValidateProportion rejects proportions outside (0, 1].
func ValidateProportion(p float64) error {
	if math.IsNaN(p) || p <= 0 || p > 1 {
		return &CompositingError{Step: "proportion", Reason: "header proportion must be in (0, 1]"}
	}
	return nil
}

// Merge returns a copy of template whose top band is replaced by the scaled
// top band of header. The inputs are not modified; on error nothing is
// returned.
func Merge(header, template image.Image, proportion float64) (*image.NRGBA, error) {
	if isEmpty(header) {
		return nil, &InvalidImageError{Which: "header", Err: errEmptyImage}
	}
	if isEmpty(template) {
		return nil, &InvalidImageError{Which: "template", Err: errEmptyImage}
	}

	hb := header.Bounds()
	tb := template.Bounds()

	g, err := Layout(hb.Dx(), hb.Dy(), tb.Dx(), tb.Dy(), proportion)
	if err != nil {
		return nil, err
	}

	src := imaging.Crop(header, image.Rect(hb.Min.X, hb.Min.Y, hb.Max.X, hb.Min.Y+g.SourceHeight))
	src = flatten(src)

	width := tb.Dx()
	var band *image.NRGBA
	if g.ScaledWidth > maxOverscan*width {
		band, err = cropThenResize(src, g, width)
		if err != nil {
			return nil, err
		}
	} else if g.ScaledWidth > width {
		scaled, err := resizeBand(src, g.ScaledWidth, g.BandHeight)
		if err != nil {
			return nil, err
		}
		band = imaging.Crop(scaled, image.Rect(g.CropLeft, 0, g.CropLeft+width, g.BandHeight))
	} else {
		scaled, err := resizeBand(src, g.ScaledWidth, g.BandHeight)
		if err != nil {
			return nil, err
		}
		band = imaging.New(width, g.BandHeight, color.White)
		band = imaging.Paste(band, scaled, image.Pt(g.OffsetX, 0))
	}

	out := imaging.Clone(template)
	return imaging.Paste(out, band, image.Pt(0, 0)), nil
}

// maxOverscan bounds how much wider than the template a band is scaled
// before cropping. Wider bands are cropped in source columns first so the
// resize buffer stays near the template width.
const maxOverscan = 2

func resizeBand(src *image.NRGBA, w, h int) (*image.NRGBA, error) {
	scaled := imaging.Resize(src, w, h, imaging.Lanczos)
	if scaled.Bounds().Dx() != w || scaled.Bounds().Dy() != h {
		return nil, &CompositingError{Step: "resize", Reason: "unexpected resize result"}
	}
	return scaled, nil
}

// cropThenResize produces the same visible window as resizing src to
// g.ScaledWidth and cropping width columns at g.CropLeft, without
// allocating the full scaled band.
func cropThenResize(src *image.NRGBA, g Geometry, width int) (*image.NRGBA, error) {
	srcW := src.Bounds().Dx()
	scale := float64(g.ScaledWidth) / float64(srcW)

	x0 := int(math.Floor(float64(g.CropLeft) / scale))
	x1 := int(math.Ceil(float64(g.CropLeft+width) / scale))
	x0 = max(x0, 0)
	x1 = min(x1, srcW)

	sub := imaging.Crop(src, image.Rect(x0, 0, x1, src.Bounds().Dy()))
	subW := max(int(math.Round(float64(x1-x0)*scale)), width)
	scaled, err := resizeBand(sub, subW, g.BandHeight)
	if err != nil {
		return nil, err
	}

	left := int(math.Round(float64(g.CropLeft) - float64(x0)*scale))
	left = min(max(left, 0), subW-width)
	return imaging.Crop(scaled, image.Rect(left, 0, left+width, g.BandHeight)), nil
}

// MergeBytes decodes PNG or JPEG inputs, merges them and encodes the result
// as PNG.
func MergeBytes(header, template []byte, proportion float64) ([]byte, error) {
	h, err := decode("header", header)
	if err != nil {
		return nil, err
	}
	t, err := decode("template", template)
	if err != nil {
		return nil, err
	}

	out, err := Merge(h, t, proportion)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, &CompositingError{Step: "encode", Reason: err.Error()}
	}
	return buf.Bytes(), nil
}

func decode(which string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &InvalidImageError{Which: which, Err: errEmptyImage}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &InvalidImageError{Which: which, Err: err}
	}
	if isEmpty(img) {
		return nil, &InvalidImageError{Which: which, Err: errEmptyImage}
	}
	return img, nil
}

// flatten composites a possibly transparent header onto white so that the
// resized band never carries alpha into the template.
func flatten(img *image.NRGBA) *image.NRGBA {
	if img.Opaque() {
		return img
	}
	b := img.Bounds()
	return imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)
}

func isEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}
