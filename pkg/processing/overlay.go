package processing

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// SaveImage saves an image to a file with the specified format and quality
func SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
		return nil
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// CreateDebugOverlay draws detected regions on top of the preprocessed canvas.
// Box colour shades from red to green with detection confidence.
func CreateDebugOverlay(pre *PreprocessedImage, regions []types.DetectedRegion) image.Image {
	nrgba := imaging.Clone(pre.Canvas)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	blue := color.NRGBA{0, 170, 255, 255} // content border
	stroke := int(math.Max(1, 0.004*float64(min(w, h))))
	cross := int(math.Max(3, 0.01*float64(min(w, h))))

	content := types.Box{X: pre.Content.Min.X, Y: pre.Content.Min.Y, Width: pre.Content.Dx(), Height: pre.Content.Dy()}
	drawBox(nrgba, content, blue, 1)

	for _, r := range regions {
		c := confidenceColor(r.Confidence)
		box := r.Box
		box.X += pre.Content.Min.X
		box.Y += pre.Content.Min.Y
		drawBox(nrgba, box, c, stroke)

		cx, cy := box.Center()
		fillRect(nrgba, image.Rect(cx-cross, cy, cx+cross+1, cy+1), c)
		fillRect(nrgba, image.Rect(cx, cy-cross, cx+1, cy+cross+1), c)
	}

	return nrgba
}

func confidenceColor(conf float64) color.NRGBA {
	c := clamp(conf, 0, 1)
	return color.NRGBA{uint8(255 * (1 - c)), uint8(255 * c), 0, 255}
}

// Helper functions
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// drawBox strokes the outline of box inward by stroke pixels
func drawBox(img *image.NRGBA, box types.Box, c color.NRGBA, stroke int) {
	r := image.Rect(box.X, box.Y, box.X+max(box.Width, 1), box.Y+max(box.Height, 1))
	s := min(stroke, r.Dx(), r.Dy())
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+s), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-s, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+s, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-s, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}
