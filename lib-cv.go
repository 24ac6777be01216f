package main

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Cleaner removes overlays from a decoded original before it is resized.
// Implementations must never fail: on any internal error they return a copy
// of the input. The caller owns both the input and the returned Mat.
type Cleaner interface {
	Clean(img gocv.Mat) gocv.Mat
}

// CornerWatermarkRemover inpaints bright overlay text confined to one corner
// of the image, the style used by image-sharing sites that stamp their logo
// in the bottom right.
type CornerWatermarkRemover struct {
	Gravity   string  // corner holding the watermark, see RegionWithGravity
	Fraction  float64 // share of width and height covered by the region
	Threshold float32 // minimum gray intensity treated as watermark
	Radius    float32 // inpainting search radius
}

// NewCornerWatermarkRemover returns a remover configured from cfg.
func NewCornerWatermarkRemover(cfg WatermarkConfig) *CornerWatermarkRemover {
	return &CornerWatermarkRemover{
		Gravity:   cfg.Gravity,
		Fraction:  cfg.Fraction,
		Threshold: cfg.Threshold,
		Radius:    cfg.Radius,
	}
}

// Clean returns a copy of img with the corner watermark inpainted. The input
// is left untouched, and a plain copy is returned if anything goes wrong.
func (r *CornerWatermarkRemover) Clean(img gocv.Mat) (out gocv.Mat) {
	out = img.Clone()
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("watermark removal failed, keeping original")
			out.Close()
			out = img.Clone()
		}
	}()

	if err := r.cleanInPlace(&out); err != nil {
		log.Debug().Err(err).Msg("watermark removal skipped")
	}
	return out
}

// cleanInPlace writes the inpainted region back into img. img is only
// modified by the final copy, so an early error leaves it intact.
func (r *CornerWatermarkRemover) cleanInPlace(img *gocv.Mat) error {
	if img.Empty() {
		return errors.New("empty image")
	}
	if img.Channels() != 3 {
		return errors.Errorf("expected 3 channels, got %d", img.Channels())
	}

	cols, rows := img.Cols(), img.Rows()
	rect, err := RegionWithGravity(cols, rows, regionExtent(cols, r.Fraction), regionExtent(rows, r.Fraction), r.Gravity)
	if err != nil {
		return err
	}
	if rect.Empty() {
		return errors.New("empty region of interest")
	}

	roi := img.Region(rect)
	defer roi.Close()

	mask := ComputeBrightMask(roi, r.Threshold)
	defer mask.Close()

	inpainted := RemoveWatermark(roi, mask, r.Radius)
	defer inpainted.Close()

	// roi shares its data with img, so this lands in the source image.
	inpainted.CopyTo(&roi)
	return nil
}

// RemoveWatermark removes a watermark from an image using inpainting
func RemoveWatermark(src, mask gocv.Mat, inpaintRadius float32) gocv.Mat {
	inpaintedImage := gocv.NewMat()

	telea := gocv.InpaintMethods(gocv.Telea)
	// ns := gocv.InpaintMethods(gocv.NS)

	gocv.Inpaint(src, mask, &inpaintedImage, inpaintRadius, telea)
	return inpaintedImage
}

// ComputeBrightMask returns a single channel mask of the pixels of img whose
// gray intensity is at least thresh, dilated once with a 3x3 rectangle so
// that anti-aliased glyph edges are covered too.
func ComputeBrightMask(img gocv.Mat, thresh float32) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	// ThresholdBinary keeps values strictly above the threshold.
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, thresh-1, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()

	mask := gocv.NewMat()
	gocv.Dilate(bin, &mask, kernel)
	return mask
}

// regionExtent returns how many pixels out of n the trailing fraction spans,
// rounding the start coordinate down the same way the corner is located.
func regionExtent(n int, fraction float64) int {
	return n - int(float64(n)*(1-fraction))
}

// RegionWithGravity returns the width x height rectangle of a cols x rows
// image anchored at the given gravity. Oversized regions are clamped to the
// image.
func RegionWithGravity(cols, rows, width, height int, gravity string) (image.Rectangle, error) {
	if width > cols {
		width = cols
	}
	if height > rows {
		height = rows
	}

	// Calculate starting coordinates based on gravity
	centerX, centerY := (cols-width)/2, (rows-height)/2
	startX, startY := 0, 0
	switch gravity {
	case "north":
		startX = centerX
	case "north-west":
	case "north-east":
		startX = cols - width
	case "west":
		startY = centerY
	case "center":
		startX, startY = centerX, centerY
	case "east":
		startX, startY = cols-width, centerY
	case "south":
		startX, startY = centerX, rows-height
	case "south-west":
		startY = rows - height
	case "south-east":
		startX, startY = cols-width, rows-height
	default:
		return image.Rectangle{}, errors.Errorf("invalid gravity %q", gravity)
	}

	return image.Rect(startX, startY, startX+width, startY+height), nil
}

// ResizeTo returns img scaled to a size x size square with bilinear
// interpolation.
func ResizeTo(img gocv.Mat, size int) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.Mat{}, errors.New("resize: empty image")
	}
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, image.Point{X: size, Y: size}, 0, 0, gocv.InterpolationLinear)
	if dst.Empty() {
		dst.Close()
		return gocv.Mat{}, errors.Errorf("resize to %dx%d produced an empty image", size, size)
	}
	return dst, nil
}

// DecodeImage reads and decodes a color image. Reading the bytes in Go keeps
// paths with non-ASCII characters working regardless of the OpenCV build.
// On error the returned Mat is the zero value and must not be closed.
func DecodeImage(path string) (gocv.Mat, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, errors.Wrapf(err, "reading %s", path)
	}
	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, errors.Wrapf(err, "decoding %s", path)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, errors.Errorf("decoding %s: not a supported image", path)
	}
	return img, nil
}

// EncodeImage encodes img in the format implied by ext (".jpg", ".png", ...).
func EncodeImage(ext string, img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.FileExt(ext), img)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", ext)
	}
	defer buf.Close()
	return buf.GetBytes(), nil
}
