package processing

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

func solidImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNewProcessor(t *testing.T) {
	p := NewProcessor()
	if p.Config().TargetResolution != 512 {
		t.Errorf("Expected target resolution 512, got %d", p.Config().TargetResolution)
	}

	custom := NewProcessorWithConfig(Config{TargetResolution: 128})
	if custom.Config().TargetResolution != 128 {
		t.Errorf("Expected target resolution 128, got %d", custom.Config().TargetResolution)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	invalid := []Config{
		{TargetResolution: 8},
		{TargetResolution: 256, DenoiseStrength: -1},
		{TargetResolution: 256, ContrastBoost: 150},
		{TargetResolution: 256, Saturation: -101},
	}
	for i, cfg := range invalid {
		if err := cfg.Validate(); !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("Case %d: expected config error, got %v", i, err)
		}
	}
}

func TestPreprocessLetterbox(t *testing.T) {
	pre, err := NewProcessor().Preprocess(types.Image{Pixels: createTestImage(200, 100)})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	b := pre.Canvas.Bounds()
	if b.Dx() != 512 || b.Dy() != 512 {
		t.Errorf("Expected 512x512 canvas, got %dx%d", b.Dx(), b.Dy())
	}

	expected := image.Rect(0, 128, 512, 384)
	if pre.Content != expected {
		t.Errorf("Expected content %v, got %v", expected, pre.Content)
	}
	if pre.Scale != 2.56 {
		t.Errorf("Expected scale 2.56, got %f", pre.Scale)
	}
	if pre.Source != image.Pt(200, 100) {
		t.Errorf("Expected source 200x100, got %v", pre.Source)
	}

	if c := pre.Canvas.NRGBAAt(5, 5); c != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black letterbox, got %v", c)
	}
}

func TestPreprocessUpscalesSmallImages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetResolution = 256

	pre, err := Preprocess(types.Image{Pixels: createTestImage(40, 40)}, cfg)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if pre.Content.Dx() != 256 || pre.Content.Dy() != 256 {
		t.Errorf("Expected content to fill canvas, got %v", pre.Content)
	}
}

func TestPreprocessOrientation(t *testing.T) {
	for _, o := range []types.Orientation{types.Orientation90, types.Orientation270} {
		pre, err := NewProcessor().Preprocess(types.Image{Pixels: createTestImage(100, 200), Orientation: o})
		if err != nil {
			t.Fatalf("Preprocess failed: %v", err)
		}
		if pre.Content.Dx() <= pre.Content.Dy() {
			t.Errorf("Orientation %d: expected landscape content, got %v", o, pre.Content)
		}
		if pre.Source != image.Pt(200, 100) {
			t.Errorf("Orientation %d: expected upright source 200x100, got %v", o, pre.Source)
		}
	}

	pre, err := NewProcessor().Preprocess(types.Image{Pixels: createTestImage(100, 200), Orientation: types.Orientation180})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if pre.Content.Dx() >= pre.Content.Dy() {
		t.Errorf("Expected portrait content for 180, got %v", pre.Content)
	}

	if _, err := NewProcessor().Preprocess(types.Image{Pixels: createTestImage(10, 10), Orientation: 45}); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("Expected invalid image for orientation 45, got %v", err)
	}
}

func TestPreprocessFlattensTransparency(t *testing.T) {
	pre, err := NewProcessor().Preprocess(types.Image{Pixels: solidImage(64, 64, color.NRGBA{0, 0, 0, 0})})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	c := pre.Canvas.NRGBAAt(256, 256)
	if c.R < 250 || c.G < 250 || c.B < 250 {
		t.Errorf("Expected transparent pixels to become white, got %v", c)
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	img := types.Image{Pixels: createTestImage(300, 170)}

	a, err := NewProcessor().Preprocess(img)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	b, err := NewProcessor().Preprocess(img)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	if !bytes.Equal(a.Canvas.Pix, b.Canvas.Pix) {
		t.Error("Expected identical canvases for identical input")
	}
}

func TestPreprocessInvalidImage(t *testing.T) {
	tests := []types.Image{
		{},
		{Pixels: image.NewRGBA(image.Rect(0, 0, 0, 10))},
	}
	for i, img := range tests {
		if _, err := NewProcessor().Preprocess(img); !errors.Is(err, types.ErrInvalidImage) {
			t.Errorf("Case %d: expected InvalidImageError, got %v", i, err)
		}
	}

	if _, err := Preprocess(types.Image{Pixels: createTestImage(10, 10)}, Config{}); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("Expected config error for zero config, got %v", err)
	}
}

func TestCreateDebugOverlayAndSave(t *testing.T) {
	pre, err := NewProcessor().Preprocess(types.Image{Pixels: createTestImage(200, 100)})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	regions := []types.DetectedRegion{
		{Label: "apple", Confidence: 0.9, Box: types.Box{X: 10, Y: 10, Width: 50, Height: 40}},
	}
	overlay := CreateDebugOverlay(pre, regions)

	nrgba, ok := overlay.(*image.NRGBA)
	if !ok {
		t.Fatalf("Expected *image.NRGBA overlay, got %T", overlay)
	}
	top := nrgba.NRGBAAt(30, pre.Content.Min.Y+10)
	if top.G < 200 || top.R > 60 {
		t.Errorf("Expected greenish box edge for high confidence, got %v", top)
	}

	dir := t.TempDir()
	for _, format := range []string{"png", "jpeg", "webp"} {
		path := filepath.Join(dir, "overlay."+format)
		if err := SaveImage(overlay, path, format, 90, false); err != nil {
			t.Errorf("SaveImage %s failed: %v", format, err)
			continue
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty %s file", format)
		}
	}
}

func BenchmarkPreprocess(b *testing.B) {
	p := NewProcessor()
	img := types.Image{Pixels: createTestImage(1024, 768)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Preprocess(img)
	}
}
