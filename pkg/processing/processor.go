package processing

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/model/imageproc"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// Config controls how photos are normalized before detection
type Config struct {
	// TargetResolution is the side of the square working canvas in pixels
	TargetResolution int `json:"target_resolution"`
	// DenoiseStrength is the Gaussian blur sigma; 0 disables denoising
	DenoiseStrength float64 `json:"denoise_strength"`
	// NormalizeLighting stretches luma between the 1st and 99th percentile
	NormalizeLighting bool `json:"normalize_lighting"`
	// ContrastBoost and Saturation are percentages in [-100, 100]
	ContrastBoost float64 `json:"contrast_boost"`
	Saturation    float64 `json:"saturation"`
}

// DefaultConfig returns the working-resolution settings used by the pipeline
func DefaultConfig() Config {
	return Config{
		TargetResolution:  512,
		DenoiseStrength:   0.8,
		NormalizeLighting: true,
		ContrastBoost:     20,
		Saturation:        10,
	}
}

// Validate checks the preprocessing configuration
func (c Config) Validate() error {
	if c.TargetResolution < 32 || c.TargetResolution > 4096 {
		return &types.ConfigError{Field: "target_resolution", Reason: "must be between 32 and 4096"}
	}
	if c.DenoiseStrength < 0 || math.IsNaN(c.DenoiseStrength) {
		return &types.ConfigError{Field: "denoise_strength", Reason: "must not be negative"}
	}
	if c.ContrastBoost < -100 || c.ContrastBoost > 100 {
		return &types.ConfigError{Field: "contrast_boost", Reason: "must be between -100 and 100"}
	}
	if c.Saturation < -100 || c.Saturation > 100 {
		return &types.ConfigError{Field: "saturation", Reason: "must be between -100 and 100"}
	}
	return nil
}

// PreprocessedImage is the analysis-ready representation of one photo.
// The photo occupies Content inside the letterboxed square Canvas.
type PreprocessedImage struct {
	Canvas  *image.NRGBA
	Content image.Rectangle
	// Scale is working pixels per source pixel
	Scale  float64
	Source image.Point
}

// Processor handles image processing operations
type Processor struct {
	config Config
}

// NewProcessor creates a new image processor with default configuration
func NewProcessor() *Processor {
	return &Processor{config: DefaultConfig()}
}

// NewProcessorWithConfig creates a new image processor with custom configuration
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{config: config}
}

// Config returns the processor configuration
func (p *Processor) Config() Config {
	return p.config
}

// Preprocess normalizes a photo with the processor's configuration
func (p *Processor) Preprocess(img types.Image) (*PreprocessedImage, error) {
	return Preprocess(img, p.config)
}

// Preprocess rotates the photo upright, flattens transparency onto white,
// resizes it to the working resolution preserving aspect ratio, denoises and
// normalizes lighting, then letterboxes it onto a black square canvas.
// The result is deterministic for identical input and configuration.
func Preprocess(img types.Image, cfg Config) (*PreprocessedImage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if img.Pixels == nil {
		return nil, &types.InvalidImageError{Reason: "no pixel data"}
	}
	if img.Width() == 0 || img.Height() == 0 {
		return nil, &types.InvalidImageError{Reason: "zero dimension"}
	}

	var src image.Image
	switch img.Orientation {
	case types.OrientationNormal:
		src = img.Pixels
	case types.Orientation90:
		src = imaging.Rotate270(img.Pixels)
	case types.Orientation180:
		src = imaging.Rotate180(img.Pixels)
	case types.Orientation270:
		src = imaging.Rotate90(img.Pixels)
	default:
		return nil, &types.InvalidImageError{Reason: "unsupported orientation"}
	}

	src = imageproc.Composite(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	target := cfg.TargetResolution
	scale := float64(target) / float64(max(w, h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	work := imaging.Resize(src, nw, nh, imaging.Lanczos)

	if cfg.DenoiseStrength > 0 {
		work = imaging.Blur(work, cfg.DenoiseStrength)
	}
	if cfg.NormalizeLighting {
		work = stretchLuma(work)
	}
	if cfg.ContrastBoost != 0 {
		work = imaging.AdjustContrast(work, cfg.ContrastBoost)
	}
	if cfg.Saturation != 0 {
		work = imaging.AdjustSaturation(work, cfg.Saturation)
	}

	canvas := imaging.New(target, target, color.NRGBA{0, 0, 0, 255})
	offset := image.Pt((target-nw)/2, (target-nh)/2)
	canvas = imaging.Paste(canvas, work, offset)

	return &PreprocessedImage{
		Canvas:  canvas,
		Content: image.Rect(offset.X, offset.Y, offset.X+nw, offset.Y+nh),
		Scale:   scale,
		Source:  image.Pt(w, h),
	}, nil
}

// stretchLuma maps the 1st..99th luma percentile onto the full range with one
// gain shared by all channels, so hue is preserved.
func stretchLuma(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	lumas := make([]float64, 0, b.Dx()*b.Dy())
	for i := 0; i+3 < len(img.Pix); i += 4 {
		lumas = append(lumas, luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
	}
	if len(lumas) == 0 {
		return img
	}
	sort.Float64s(lumas)

	lo := lumas[len(lumas)/100]
	hi := lumas[len(lumas)-1-len(lumas)/100]
	if hi-lo < 1 {
		return img
	}
	gain := 255 / (hi - lo)

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampByte((float64(c.R) - lo) * gain),
			G: clampByte((float64(c.G) - lo) * gain),
			B: clampByte((float64(c.B) - lo) * gain),
			A: c.A,
		}
	})
}

func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
