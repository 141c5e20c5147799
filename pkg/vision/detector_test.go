package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"reflect"
	"testing"

	"github.com/menta2k/calorie-estimator/pkg/processing"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

var (
	appleRed      = color.NRGBA{220, 20, 30, 255}
	broccoliGreen = color.NRGBA{20, 200, 40, 255}
	tableGray     = color.NRGBA{128, 128, 128, 255}
)

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// createTestImage creates a plate with a red item top-left and a green item bottom-right
func createTestImage(width, height int) *processing.PreprocessedImage {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), tableGray)
	fill(img, image.Rect(width/20, height/20, width/20+width*3/10, height/20+height*3/10), appleRed)
	fill(img, image.Rect(width*6/10, height*6/10, width*9/10, height*9/10), broccoliGreen)
	return &processing.PreprocessedImage{Canvas: img, Content: img.Bounds(), Scale: 1, Source: image.Pt(width, height)}
}

func solid(width, height int, c color.NRGBA) *processing.PreprocessedImage {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), c)
	return &processing.PreprocessedImage{Canvas: img, Content: img.Bounds(), Scale: 1, Source: image.Pt(width, height)}
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}

	if detector.config.MergeIoU != 0.5 {
		t.Errorf("Expected merge IoU 0.5, got %f", detector.config.MergeIoU)
	}
	if len(detector.config.Profiles) != 4 {
		t.Errorf("Expected 4 default profiles, got %d", len(detector.config.Profiles))
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRegionFraction = 0.2
	cfg.Parallel = false

	detector := NewWithConfig(cfg)
	if detector.config.MinRegionFraction != 0.2 {
		t.Errorf("Expected min region fraction 0.2, got %f", detector.config.MinRegionFraction)
	}
}

func TestToHSV(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    types.HSV
	}{
		{255, 0, 0, types.HSV{H: 0, S: 255, V: 255}},
		{0, 255, 0, types.HSV{H: 60, S: 255, V: 255}},
		{0, 0, 255, types.HSV{H: 120, S: 255, V: 255}},
		{128, 128, 128, types.HSV{H: 0, S: 0, V: 128}},
	}

	for _, test := range tests {
		got := toHSV(test.r, test.g, test.b)
		if math.Abs(got.H-test.want.H) > 1e-9 || math.Abs(got.S-test.want.S) > 1e-9 || got.V != test.want.V {
			t.Errorf("toHSV(%d,%d,%d): expected %+v, got %+v", test.r, test.g, test.b, test.want, got)
		}
	}

	if d := hueDistance(178, 2); d != 4 {
		t.Errorf("Expected circular hue distance 4, got %f", d)
	}

	var acc hueAccumulator
	acc.add(types.HSV{H: 178})
	acc.add(types.HSV{H: 2})
	if d := hueDistance(acc.mean().H, 0); d > 1e-6 {
		t.Errorf("Expected mean hue of 178 and 2 to be 0, got %f", acc.mean().H)
	}
}

func TestDetectFullFrameApple(t *testing.T) {
	regions, err := New().Detect(context.Background(), solid(100, 80, appleRed), 0.5)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("Expected 1 region, got %d", len(regions))
	}

	r := regions[0]
	if r.Label != "apple" {
		t.Errorf("Expected apple, got %s", r.Label)
	}
	if math.Abs(r.Confidence-0.9) > 1e-9 {
		t.Errorf("Expected confidence 0.9, got %f", r.Confidence)
	}
	if r.Box != (types.Box{X: 0, Y: 0, Width: 100, Height: 80}) {
		t.Errorf("Expected full frame box, got %+v", r.Box)
	}
	if !r.Shape.TouchesBorder || r.Shape.AreaFraction() != 1 {
		t.Errorf("Expected full frame shape touching border, got %+v", r.Shape)
	}
}

func TestDetectMultipleItems(t *testing.T) {
	regions, err := New().Detect(context.Background(), createTestImage(100, 100), 0.5)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d: %+v", len(regions), regions)
	}

	if regions[0].Label != "apple" || regions[1].Label != "broccoli" {
		t.Errorf("Expected apple then broccoli, got %s then %s", regions[0].Label, regions[1].Label)
	}
	if regions[0].Confidence < regions[1].Confidence {
		t.Error("Expected regions ordered by descending confidence")
	}
	if regions[0].Box != (types.Box{X: 5, Y: 5, Width: 30, Height: 30}) {
		t.Errorf("Unexpected apple box %+v", regions[0].Box)
	}
	if regions[1].Shape.TouchesBorder {
		t.Error("Broccoli region should not touch the border")
	}
}

func TestDetectIgnoresLetterbox(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	content := image.Rect(0, 25, 100, 75)
	fill(img, content, appleRed)
	pre := &processing.PreprocessedImage{Canvas: img, Content: content, Scale: 0.5}

	regions, err := New().Detect(context.Background(), pre, 0.5)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("Expected 1 region, got %d", len(regions))
	}
	if regions[0].Box != (types.Box{X: 0, Y: 0, Width: 100, Height: 50}) {
		t.Errorf("Expected box relative to content, got %+v", regions[0].Box)
	}
	if regions[0].Shape.FrameHeight != 50 || regions[0].Scale != 0.5 {
		t.Errorf("Expected content frame and scale, got %+v scale %f", regions[0].Shape, regions[0].Scale)
	}
}

func TestDetectDropsSmallSegments(t *testing.T) {
	pre := solid(100, 100, tableGray)
	fill(pre.Canvas, image.Rect(10, 10, 12, 12), appleRed)

	regions, err := New().Detect(context.Background(), pre, 0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("Expected tiny segment to be dropped, got %+v", regions)
	}
}

func TestDetectThresholdMonotonic(t *testing.T) {
	detector := New()
	pre := createTestImage(100, 100)

	previous := math.MaxInt
	for _, threshold := range []float64{0, 0.3, 0.6, 0.86, 0.95, 1} {
		regions, err := detector.Detect(context.Background(), pre, threshold)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if len(regions) > previous {
			t.Errorf("Threshold %f returned %d regions, more than %d", threshold, len(regions), previous)
		}
		for _, r := range regions {
			if r.Confidence < threshold {
				t.Errorf("Region below threshold %f: %+v", threshold, r)
			}
		}
		previous = len(regions)
	}
	if previous != 0 {
		t.Errorf("Expected no regions at threshold 1, got %d", previous)
	}
}

func TestDetectInvalidThreshold(t *testing.T) {
	for _, threshold := range []float64{1.5, -0.1, math.NaN()} {
		_, err := New().Detect(context.Background(), solid(10, 10, appleRed), threshold)
		if !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("Threshold %v: expected config error, got %v", threshold, err)
		}
	}

	if _, err := New().Detect(context.Background(), nil, 0.5); !errors.Is(err, types.ErrInvalidImage) {
		t.Errorf("Expected invalid image for nil input, got %v", err)
	}
}

func TestDetectParallelMatchesSequential(t *testing.T) {
	pre := createTestImage(120, 90)
	fill(pre.Canvas, image.Rect(40, 0, 80, 20), color.NRGBA{200, 170, 60, 255})

	seqCfg := DefaultConfig()
	seqCfg.Parallel = false
	sequential, err := NewWithConfig(seqCfg).Detect(context.Background(), pre, 0.1)
	if err != nil {
		t.Fatalf("Sequential detect failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		parallel, err := New().Detect(context.Background(), pre, 0.1)
		if err != nil {
			t.Fatalf("Parallel detect failed: %v", err)
		}
		if !reflect.DeepEqual(sequential, parallel) {
			t.Fatalf("Parallel output differs from sequential:\n%+v\n%+v", sequential, parallel)
		}
	}
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Detect(ctx, createTestImage(100, 100), 0.5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDetectPreprocessedPhoto(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 150))
	fill(img, img.Bounds(), appleRed)

	pre, err := processing.NewProcessor().Preprocess(types.Image{Pixels: img})
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	regions, err := New().Detect(context.Background(), pre, 0.5)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 1 || regions[0].Label != "apple" {
		t.Fatalf("Expected a single apple, got %+v", regions)
	}
	if regions[0].Shape.AreaFraction() < 0.99 {
		t.Errorf("Expected apple to cover the photo, got %f", regions[0].Shape.AreaFraction())
	}
}

func TestMergeDuplicates(t *testing.T) {
	regions := []types.DetectedRegion{
		{Label: "apple", Confidence: 0.8, Box: types.Box{X: 2, Y: 0, Width: 10, Height: 10}},
		{Label: "apple", Confidence: 0.9, Box: types.Box{X: 0, Y: 0, Width: 10, Height: 10}},
		{Label: "rice", Confidence: 0.7, Box: types.Box{X: 0, Y: 0, Width: 10, Height: 10}},
	}

	merged := MergeDuplicates(regions, 0.5)
	if len(merged) != 2 {
		t.Fatalf("Expected 2 regions after merge, got %d", len(merged))
	}
	if merged[0].Label != "apple" || merged[0].Confidence != 0.9 || merged[0].Box.X != 0 {
		t.Errorf("Expected higher-confidence apple geometry to survive, got %+v", merged[0])
	}
	if merged[1].Label != "rice" {
		t.Errorf("Expected overlapping rice to be kept, got %+v", merged[1])
	}
	if regions[0].Confidence != 0.8 {
		t.Error("MergeDuplicates should not reorder its input")
	}
}

func TestMergeDuplicatesBoundary(t *testing.T) {
	a := types.DetectedRegion{Label: "apple", Confidence: 0.9, Box: types.Box{Width: 10, Height: 10}}

	atThreshold := types.DetectedRegion{Label: "apple", Confidence: 0.8, Box: types.Box{Width: 10, Height: 5}}
	if got := MergeDuplicates([]types.DetectedRegion{a, atThreshold}, 0.5); len(got) != 2 {
		t.Errorf("IoU equal to threshold should not merge, got %d regions", len(got))
	}

	above := types.DetectedRegion{Label: "apple", Confidence: 0.8, Box: types.Box{Width: 10, Height: 6}}
	if got := MergeDuplicates([]types.DetectedRegion{a, above}, 0.5); len(got) != 1 {
		t.Errorf("IoU above threshold should merge, got %d regions", len(got))
	}
}

func TestSortRegionsTies(t *testing.T) {
	regions := []types.DetectedRegion{
		{Label: "b", Confidence: 0.5, Box: types.Box{X: 10, Y: 0}},
		{Label: "a", Confidence: 0.5, Box: types.Box{X: 0, Y: 20}},
		{Label: "c", Confidence: 0.5, Box: types.Box{X: 0, Y: 5}},
		{Label: "d", Confidence: 0.7, Box: types.Box{X: 50, Y: 50}},
	}

	SortRegions(regions)

	want := []string{"d", "c", "a", "b"}
	for i, label := range want {
		if regions[i].Label != label {
			t.Errorf("Position %d: expected %s, got %s", i, label, regions[i].Label)
		}
	}
}

func BenchmarkDetect(b *testing.B) {
	detector := New()
	pre := createTestImage(512, 512)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Detect(ctx, pre, 0.5)
	}
}
