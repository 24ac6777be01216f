package main

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Augmenter synthesizes a new training sample from a decoded source image.
// The caller owns both the input and the returned Mat.
type Augmenter interface {
	Augment(img gocv.Mat) (gocv.Mat, error)
}

// transform is one stochastic step of a Pipeline, applied when its Bernoulli
// trial with probability p succeeds.
type transform struct {
	name  string
	p     float64
	apply func(src gocv.Mat, rng *rand.Rand) (gocv.Mat, error)
}

const (
	rotateLimit      = 30.0
	brightnessLimit  = 0.2
	contrastLimit    = 0.2
	blurMinKernel    = 3
	blurMaxKernel    = 7
	isoColorShiftMin = 0.01
	isoColorShiftMax = 0.05
	isoIntensityMin  = 0.1
	isoIntensityMax  = 0.5
	perspectiveMin   = 0.05
	perspectiveMax   = 0.1
)

// defaultTransforms lists the augmentation steps in application order.
func defaultTransforms() []transform {
	return []transform{
		{name: "rotate", p: 0.7, apply: rotate},
		{name: "hflip", p: 0.5, apply: flipHorizontal},
		{name: "brightness-contrast", p: 0.5, apply: brightnessContrast},
		{name: "gaussian-blur", p: 0.3, apply: gaussianBlur},
		{name: "iso-noise", p: 0.3, apply: isoNoise},
		{name: "perspective", p: 0.3, apply: perspective},
	}
}

// Pipeline applies the default augmentation steps, each with its own
// probability, and always finishes with a resize to Size x Size.
type Pipeline struct {
	Size       int
	rng        *rand.Rand
	transforms []transform
}

// NewPipeline returns the default augmentation pipeline drawing every random
// decision from rng.
func NewPipeline(size int, rng *rand.Rand) *Pipeline {
	return &Pipeline{Size: size, rng: rng, transforms: defaultTransforms()}
}

// Augment implements Augmenter.
func (p *Pipeline) Augment(img gocv.Mat) (out gocv.Mat, err error) {
	if img.Empty() {
		return gocv.Mat{}, errors.New("augment: empty image")
	}

	cur := img.Clone()
	defer func() {
		cur.Close()
		if rec := recover(); rec != nil {
			out, err = gocv.Mat{}, errors.Errorf("augment: %v", rec)
		}
	}()

	for _, t := range p.transforms {
		if p.rng.Float64() >= t.p {
			continue
		}
		next, err := t.apply(cur, p.rng)
		if err != nil {
			return gocv.Mat{}, errors.WithMessagef(err, "augment: %s", t.name)
		}
		cur.Close()
		cur = next
	}
	return ResizeTo(cur, p.Size)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func rotate(src gocv.Mat, rng *rand.Rand) (gocv.Mat, error) {
	angle := uniform(rng, -rotateLimit, rotateLimit)
	size := image.Point{X: src.Cols(), Y: src.Rows()}

	m := gocv.GetRotationMatrix2D(image.Point{X: size.X / 2, Y: size.Y / 2}, angle, 1.0)
	defer m.Close()

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, m, size, gocv.InterpolationLinear, gocv.BorderReflect101, color.RGBA{})
	return dst, nil
}

func flipHorizontal(src gocv.Mat, _ *rand.Rand) (gocv.Mat, error) {
	dst := gocv.NewMat()
	gocv.Flip(src, &dst, 1)
	return dst, nil
}

// brightnessContrast scales pixel values by a contrast factor and shifts
// them by a brightness offset relative to the 8-bit maximum, saturating.
func brightnessContrast(src gocv.Mat, rng *rand.Rand) (gocv.Mat, error) {
	alpha := 1 + uniform(rng, -contrastLimit, contrastLimit)
	beta := uniform(rng, -brightnessLimit, brightnessLimit) * 255

	dst := gocv.NewMat()
	src.ConvertToWithParams(&dst, src.Type(), float32(alpha), float32(beta))
	return dst, nil
}

func gaussianBlur(src gocv.Mat, rng *rand.Rand) (gocv.Mat, error) {
	// Odd kernel sizes only.
	k := blurMinKernel + 2*rng.IntN((blurMaxKernel-blurMinKernel)/2+1)

	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)
	return dst, nil
}

// isoNoise simulates camera sensor noise: a Poisson distributed luminance
// lift scaled by the image's own luminance spread, plus a Gaussian hue shift.
func isoNoise(src gocv.Mat, rng *rand.Rand) (gocv.Mat, error) {
	if src.Channels() != 3 {
		return gocv.Mat{}, errors.Errorf("iso noise needs 3 channels, got %d", src.Channels())
	}
	colorShift := uniform(rng, isoColorShiftMin, isoColorShiftMax)
	intensity := uniform(rng, isoIntensityMin, isoIntensityMax)

	unit := gocv.NewMat()
	defer unit.Close()
	src.ConvertToWithParams(&unit, gocv.MatTypeCV32FC3, 1.0/255, 0)

	// Float HLS: hue in [0, 360), lightness and saturation in [0, 1].
	hls := gocv.NewMat()
	defer hls.Close()
	gocv.CvtColor(unit, &hls, gocv.ColorBGRToHLS)

	mean, stdDev := gocv.NewMat(), gocv.NewMat()
	defer mean.Close()
	defer stdDev.Close()
	gocv.MeanStdDev(hls, &mean, &stdDev)

	data, err := hls.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "iso noise")
	}

	luminance := distuv.Poisson{Lambda: stdDev.GetDoubleAt(1, 0) * intensity * 255, Src: rng}
	hue := distuv.Normal{Mu: 0, Sigma: colorShift * 360 * intensity, Src: rng}
	for i := 0; i+2 < len(data); i += 3 {
		h := data[i] + float32(hue.Rand())
		if h < 0 {
			h += 360
		} else if h > 360 {
			h -= 360
		}
		data[i] = h

		l := data[i+1]
		data[i+1] = l + float32(luminance.Rand()/255)*(1-l)
	}

	noisy := gocv.NewMat()
	defer noisy.Close()
	gocv.CvtColor(hls, &noisy, gocv.ColorHLSToBGR)

	dst := gocv.NewMat()
	noisy.ConvertToWithParams(&dst, gocv.MatTypeCV8UC3, 255, 0)
	return dst, nil
}

// perspective pulls each corner inwards by a random share of the image size
// and warps that quadrilateral back onto the full frame.
func perspective(src gocv.Mat, rng *rand.Rand) (gocv.Mat, error) {
	scale := uniform(rng, perspectiveMin, perspectiveMax)
	w, h := float64(src.Cols()), float64(src.Rows())
	jitter := func() float64 {
		return math.Mod(math.Abs(rng.NormFloat64()*scale), 0.32)
	}

	from := []gocv.Point2f{
		{X: float32(jitter() * w), Y: float32(jitter() * h)},
		{X: float32((1 - jitter()) * w), Y: float32(jitter() * h)},
		{X: float32((1 - jitter()) * w), Y: float32((1 - jitter()) * h)},
		{X: float32(jitter() * w), Y: float32((1 - jitter()) * h)},
	}
	to := []gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(w), Y: 0},
		{X: float32(w), Y: float32(h)},
		{X: 0, Y: float32(h)},
	}

	fromVec := gocv.NewPoint2fVectorFromPoints(from)
	defer fromVec.Close()
	toVec := gocv.NewPoint2fVectorFromPoints(to)
	defer toVec.Close()

	m := gocv.GetPerspectiveTransform2f(fromVec, toVec)
	defer m.Close()

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, m, image.Point{X: src.Cols(), Y: src.Rows()})
	return dst, nil
}
