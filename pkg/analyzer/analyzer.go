package analyzer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// ImageAnalyzer decodes and inspects meal photographs before they enter the pipeline
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	// MinImageSize rejects photos narrower or shorter than this; 1 accepts any non-empty photo
	MinImageSize     int
	QualityThreshold float64
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"jpeg", "png", "gif", "webp"},
			MinImageSize:     1,
			QualityThreshold: 0.3,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// LoadImage reads and decodes an image file
func (a *ImageAnalyzer) LoadImage(path string) (types.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Image{}, fmt.Errorf("failed to open image file: %w", err)
	}
	return a.DecodeImage(data)
}

// LoadImageFromReader decodes an image from an io.Reader
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (types.Image, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return types.Image{}, &types.InvalidImageError{Reason: "unreadable input", Err: err}
	}
	return a.DecodeImage(data)
}

// DecodeImage decodes raw image bytes. Empty, undecodable, unsupported or
// undersized input yields an InvalidImageError.
func (a *ImageAnalyzer) DecodeImage(data []byte) (types.Image, error) {
	if len(data) == 0 {
		return types.Image{}, &types.InvalidImageError{Reason: "empty input"}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Fallback: explicit WebP decode
		wimg, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return types.Image{}, &types.InvalidImageError{Reason: "undecodable input", Err: err}
		}
		img, format = wimg, "webp"
	}

	if !a.isFormatSupported(format) {
		return types.Image{}, &types.InvalidImageError{Reason: "unsupported format " + format}
	}

	decoded := types.Image{
		Pixels:       img,
		Format:       format,
		ChannelDepth: channelDepth(img),
	}
	if err := a.ValidateImage(decoded); err != nil {
		return types.Image{}, err
	}
	return decoded, nil
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width        int
	Height       int
	AspectRatio  float64
	Area         int
	Format       string
	ChannelDepth int
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img types.Image) ImageInfo {
	width, height := img.Width(), img.Height()

	info := ImageInfo{
		Width:        width,
		Height:       height,
		Area:         width * height,
		Format:       img.Format,
		ChannelDepth: img.ChannelDepth,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img types.Image) error {
	if img.Pixels == nil {
		return &types.InvalidImageError{Reason: "no pixel data"}
	}
	if img.Width() == 0 || img.Height() == 0 {
		return &types.InvalidImageError{Reason: "zero dimension"}
	}
	if img.Width() < a.config.MinImageSize || img.Height() < a.config.MinImageSize {
		return &types.InvalidImageError{
			Reason: fmt.Sprintf("image too small: %dx%d (minimum: %d)", img.Width(), img.Height(), a.config.MinImageSize),
		}
	}
	switch img.Orientation {
	case types.OrientationNormal, types.Orientation90, types.Orientation180, types.Orientation270:
	default:
		return &types.InvalidImageError{Reason: fmt.Sprintf("unsupported orientation %d", img.Orientation)}
	}
	return nil
}

// Quality summarizes how suitable a photo is for analysis
type Quality struct {
	Score      float64
	Sharpness  float64
	Brightness float64
	Contrast   float64
	Acceptable bool
}

// AssessQuality estimates sharpness (variance of the Laplacian), brightness and
// contrast (mean and standard deviation of luma) of an image.
func (a *ImageAnalyzer) AssessQuality(img types.Image) Quality {
	if img.Pixels == nil || img.Width() < 3 || img.Height() < 3 {
		return Quality{}
	}

	gray := lumaGrid(img.Pixels)
	h := len(gray)
	w := len(gray[0])

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += gray[y][x]
			sumSq += gray[y][x] * gray[y][x]
		}
	}
	n := float64(w * h)
	brightness := sum / n
	contrast := math.Sqrt(math.Max(0, sumSq/n-brightness*brightness))

	var lapSum, lapSq float64
	count := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1] - 4*gray[y][x]
			lapSum += lap
			lapSq += lap * lap
			count++
		}
	}
	lapMean := lapSum / float64(count)
	sharpness := lapSq/float64(count) - lapMean*lapMean

	score := math.Min(1.0, (sharpness/1000)*(contrast/50))
	return Quality{
		Score:      score,
		Sharpness:  sharpness,
		Brightness: brightness,
		Contrast:   contrast,
		Acceptable: score >= a.config.QualityThreshold,
	}
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// lumaGrid converts an image to 8-bit luma values
func lumaGrid(img image.Image) [][]float64 {
	b := img.Bounds()
	grid := make([][]float64, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := make([]float64, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
			row[x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
		}
		grid[y] = row
	}
	return grid
}

func channelDepth(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return 4
	default:
		return 3
	}
}
