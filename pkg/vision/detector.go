package vision

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/calorie-estimator/pkg/processing"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

// FoodDetector finds candidate food regions in a preprocessed image
type FoodDetector struct {
	config Config
}

// Config holds configuration for food detection
type Config struct {
	// MinRegionFraction is the smallest segment, as a share of the frame, kept as a candidate
	MinRegionFraction float64
	// FullSizeFraction is the frame share at which a segment gets full size confidence
	FullSizeFraction float64
	// MergeIoU is the overlap above which same-label regions are merged
	MergeIoU float64
	// Parallel scans colour profiles concurrently
	Parallel bool
	Profiles []Profile
}

// DefaultConfig returns the default detection settings
func DefaultConfig() Config {
	return Config{
		MinRegionFraction: 0.005,
		FullSizeFraction:  0.02,
		MergeIoU:          0.5,
		Parallel:          true,
		Profiles:          DefaultProfiles(),
	}
}

// New creates a new FoodDetector with default configuration
func New() *FoodDetector {
	return &FoodDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new FoodDetector with custom configuration
func NewWithConfig(config Config) *FoodDetector {
	return &FoodDetector{config: config}
}

// Config returns the detector configuration
func (d *FoodDetector) Config() Config {
	return d.config
}

// Detect segments the content area of pre and returns the regions whose
// confidence reaches threshold, with same-label duplicates merged, ordered by
// descending confidence then left-to-right, top-to-bottom.
// The scan stops early when ctx is done.
func (d *FoodDetector) Detect(ctx context.Context, pre *processing.PreprocessedImage, threshold float64) ([]types.DetectedRegion, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, &types.ConfigError{Field: "confidence_threshold", Reason: fmt.Sprintf("%v is outside [0,1]", threshold)}
	}
	if pre == nil || pre.Canvas == nil {
		return nil, &types.InvalidImageError{Reason: "no preprocessed image"}
	}

	content := pre.Content.Intersect(pre.Canvas.Bounds())
	if content.Empty() {
		return []types.DetectedRegion{}, nil
	}

	grid, err := buildHSVGrid(ctx, pre.Canvas, content)
	if err != nil {
		return nil, err
	}

	perProfile, err := d.scan(ctx, grid, pre.Scale)
	if err != nil {
		return nil, err
	}

	var candidates []types.DetectedRegion
	for _, regions := range perProfile {
		for _, r := range regions {
			if r.Confidence >= threshold {
				candidates = append(candidates, r)
			}
		}
	}

	return MergeDuplicates(candidates, d.config.MergeIoU), nil
}

// scan runs every profile over the grid. Results are indexed by profile so the
// parallel and sequential scans produce the same output.
func (d *FoodDetector) scan(ctx context.Context, grid *hsvGrid, scale float64) ([][]types.DetectedRegion, error) {
	profiles := d.config.Profiles
	results := make([][]types.DetectedRegion, len(profiles))

	if !d.config.Parallel {
		for i, p := range profiles {
			regions, err := d.scanProfile(ctx, grid, p, scale)
			if err != nil {
				return nil, err
			}
			results[i] = regions
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range profiles {
		g.Go(func() error {
			regions, err := d.scanProfile(gctx, grid, p, scale)
			if err != nil {
				return err
			}
			results[i] = regions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *FoodDetector) scanProfile(ctx context.Context, grid *hsvGrid, p Profile, scale float64) ([]types.DetectedRegion, error) {
	frame := grid.w * grid.h
	minArea := max(1, int(math.Ceil(d.config.MinRegionFraction*float64(frame))))

	comps, err := segment(ctx, grid, p, minArea)
	if err != nil {
		return nil, fmt.Errorf("failed to segment %s: %w", p.Name, err)
	}

	regions := make([]types.DetectedRegion, 0, len(comps))
	for _, c := range comps {
		shape := c.shape(grid.w, grid.h)
		mean := c.color.mean()

		label := ""
		if p.Classify != nil {
			label = p.Classify(mean, shape.AreaFraction())
		}
		if label == "" {
			continue
		}

		regions = append(regions, types.DetectedRegion{
			Label:      label,
			Confidence: d.confidence(p.Base, shape),
			Box:        c.box(),
			Shape:      shape,
			MeanColor:  mean,
			Scale:      scale,
		})
	}
	return regions, nil
}

// confidence scales the profile base by segment size and compactness
func (d *FoodDetector) confidence(base float64, s types.Shape) float64 {
	size := 1.0
	if d.config.FullSizeFraction > 0 {
		size = math.Min(1, s.AreaFraction()/d.config.FullSizeFraction)
	}
	return types.Clamp01(base * (0.5 + 0.5*size) * (0.6 + 0.4*s.Fill))
}

// SortRegions orders regions by descending confidence, then left-to-right,
// top-to-bottom, then label.
func SortRegions(regions []types.DetectedRegion) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Box.X != b.Box.X {
			return a.Box.X < b.Box.X
		}
		if a.Box.Y != b.Box.Y {
			return a.Box.Y < b.Box.Y
		}
		return a.Label < b.Label
	})
}

// MergeDuplicates collapses same-label regions overlapping by more than
// iouThreshold into the first of them in sorted order. Regions of different
// labels are always kept. The result is sorted and the input is left untouched.
func MergeDuplicates(regions []types.DetectedRegion, iouThreshold float64) []types.DetectedRegion {
	sorted := make([]types.DetectedRegion, len(regions))
	copy(sorted, regions)
	SortRegions(sorted)

	kept := make([]types.DetectedRegion, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].Label != sorted[i].Label {
				continue
			}
			if sorted[i].Box.IoU(sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
